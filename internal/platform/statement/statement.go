package statement

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"commissionflow/internal/domain/workflow"
)

// Statement is the printable summary of one commission for one viewer.
type Statement struct {
	CommissionID     string
	ReferenceNumber  string
	Consultant       string
	SaleAmount       string
	CalculatedAmount string
	Role             workflow.Role
	View             workflow.View
	GeneratedAt      time.Time
}

type line struct {
	bold bool
	text string
	gap  float64
}

func Render(w io.Writer, s Statement) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Commission "+s.CommissionID, true)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, "Commission Statement")
	pdf.Ln(12)
	for _, l := range lines(s) {
		style := ""
		if l.bold {
			style = "B"
		}
		pdf.SetFont("Helvetica", style, 12)
		pdf.Cell(0, 8, l.text)
		pdf.Ln(l.gap)
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render statement %s: %w", s.CommissionID, err)
	}
	return nil
}

func lines(s Statement) []line {
	generated := s.GeneratedAt
	if generated.IsZero() {
		generated = time.Now()
	}
	out := []line{
		{text: fmt.Sprintf("Commission: %s", s.CommissionID), gap: 7},
	}
	if s.ReferenceNumber != "" {
		out = append(out, line{text: fmt.Sprintf("Reference: %s", s.ReferenceNumber), gap: 7})
	}
	out = append(out,
		line{text: fmt.Sprintf("Consultant: %s", valueOr(s.Consultant, "-")), gap: 7},
		line{text: fmt.Sprintf("Sale amount: %s", valueOr(s.SaleAmount, "-")), gap: 7},
		line{text: fmt.Sprintf("Commission: %s", valueOr(s.CalculatedAmount, "-")), gap: 7},
		line{text: fmt.Sprintf("Status: %s", s.View.Status), gap: 10},
		line{bold: true, text: "Progress", gap: 8},
	)
	for _, step := range s.View.Steps {
		out = append(out, line{text: stepMarker(step) + " " + step.Label, gap: 7})
	}
	out = append(out, line{gap: 3})
	if len(s.View.Actions) > 0 {
		labels := make([]string, 0, len(s.View.Actions))
		for _, a := range s.View.Actions {
			labels = append(labels, a.Label)
		}
		out = append(out, line{bold: true, text: fmt.Sprintf("Available to %s: %s", s.Role, strings.Join(labels, ", ")), gap: 7})
	} else if s.View.Note != "" {
		out = append(out, line{bold: true, text: s.View.Note, gap: 7})
	}
	out = append(out, line{text: "Generated " + generated.UTC().Format(time.RFC3339), gap: 7})
	return out
}

func stepMarker(step workflow.Step) string {
	switch {
	case step.Rejected:
		return "[x]"
	case step.Completed:
		return "[v]"
	case step.Current:
		return "[>]"
	default:
		return "[ ]"
	}
}

func valueOr(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
