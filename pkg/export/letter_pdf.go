package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"github.com/Srishanth-023/IQAC-Approval-Portal-sub000/internal/models"
)

// LetterRenderer produces the final approval letter PDF from a completed
// request snapshot. Rendering is pure: the same snapshot always yields an
// equivalent document.
type LetterRenderer struct {
	institution string
}

// NewLetterRenderer constructs a renderer with the institution letterhead.
func NewLetterRenderer(institution string) *LetterRenderer {
	if institution == "" {
		institution = "Institution of Engineering and Technology"
	}
	return &LetterRenderer{institution: institution}
}

// Render creates the approval letter for a completed request.
func (r *LetterRenderer) Render(req *models.EventRequest) ([]byte, error) {
	if req == nil {
		return nil, fmt.Errorf("letter requires a request snapshot")
	}
	if !req.IsCompleted {
		return nil, fmt.Errorf("letter requires a completed request")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 18, 15)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 15)
	pdf.CellFormat(0, 10, r.institution, "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(0, 8, "EVENT APPROVAL LETTER", "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Arial", "", 10)
	if req.ReferenceNo != nil {
		pdf.CellFormat(0, 6, fmt.Sprintf("Reference No: %s", *req.ReferenceNo), "", 1, "L", false, 0, "")
	}
	pdf.CellFormat(0, 6, fmt.Sprintf("Department: %s", req.Department), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Requested By: %s", req.StaffName), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(0, 7, "Event Details", "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Event: %s", req.EventName), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Date: %s", req.EventDate), "", 1, "L", false, 0, "")
	pdf.MultiCell(0, 6, fmt.Sprintf("Purpose: %s", req.Purpose), "", "L", false)
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(0, 7, "Approval Trail", "", 1, "L", false, 0, "")

	pdf.SetFont("Arial", "B", 9)
	widths := []float64{30, 25, 80, 45}
	headers := []string{"Role", "Decision", "Comments", "Date"}
	for i, header := range headers {
		pdf.CellFormat(widths[i], 7, header, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for _, decision := range req.Approvals {
		comments := decision.Comments
		if len(comments) > 60 {
			comments = comments[:57] + "..."
		}
		pdf.CellFormat(widths[0], 6, string(decision.Role), "1", 0, "", false, 0, "")
		pdf.CellFormat(widths[1], 6, string(decision.Status), "1", 0, "", false, 0, "")
		pdf.CellFormat(widths[2], 6, comments, "1", 0, "", false, 0, "")
		pdf.CellFormat(widths[3], 6, decision.DecidedAt.Format("02 Jan 2006 15:04"), "1", 0, "", false, 0, "")
		pdf.Ln(-1)
	}

	pdf.Ln(10)
	pdf.SetFont("Arial", "I", 9)
	pdf.CellFormat(0, 6, "This letter is system generated upon completion of the approval workflow.", "", 1, "L", false, 0, "")

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render letter: %w", err)
	}
	return buf.Bytes(), nil
}
