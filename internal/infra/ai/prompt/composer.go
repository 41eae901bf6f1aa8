package prompt

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/bryanwahyu/medreport-ai/internal/domain/ai"
	domain "github.com/bryanwahyu/medreport-ai/internal/domain/analysis"
)

// NotSpecified is substituted for every absent optional patient field so the
// model never sees an empty slot.
const NotSpecified = "Not specified"

// Prompt is the composed instruction document plus the ordered image
// attachments for the multimodal call. Immutable once built.
type Prompt struct {
	Text        string
	Attachments []ai.Attachment
}

// Compose builds the single instruction document from the submission
// metadata and the extraction output. Image files are never inlined into the
// text; they ride alongside as attachments in upload order. For an identical
// submission and processed-file set the output is byte-identical.
func Compose(sub domain.Submission, processed []domain.ProcessedFile, combinedText string) Prompt {
	var b strings.Builder

	b.WriteString("You are a medical assistant that recommends hospitals for patients based on their medical reports, symptoms, and location.\n\n")

	b.WriteString("Patient Information:\n")
	fmt.Fprintf(&b, "- Name: %s\n", orNotSpecified(sub.Patient.Name))
	fmt.Fprintf(&b, "- Age: %s\n", orNotSpecified(sub.Patient.Age))
	fmt.Fprintf(&b, "- Gender: %s\n", orNotSpecified(sub.Patient.Gender))
	fmt.Fprintf(&b, "- Symptoms: %s\n", orNotSpecified(sub.Patient.Symptoms))
	fmt.Fprintf(&b, "- Urgency: %s\n", orNotSpecified(string(sub.Patient.Urgency)))

	b.WriteString("\nRequested Test Categories: ")
	if len(sub.SelectedTests) == 0 {
		b.WriteString("None specified")
	} else {
		b.WriteString(strings.Join(sub.SelectedTests, ", "))
	}
	b.WriteString("\n")

	b.WriteString("\nUploaded Files:\n")
	for _, f := range sub.Files {
		fmt.Fprintf(&b, "- %s (%s)\n", f.OriginalName, f.ContentType)
	}

	fmt.Fprintf(&b, "\nPatient Location: %s\n", locationSummary(sub.Location))

	b.WriteString(`
For each hospital recommendation, provide:
1. Hospital name and full address
2. The condition(s) detected in the reports and the findings supporting them
3. Why this hospital's specialization fits the detected condition
4. Specific departments and named specialists to consult
5. Distance from the patient's city
6. Contact details for booking an appointment (phone, website)
7. Estimated cost ranges for consultation and the likely tests
8. How soon the patient should visit given the stated urgency
9. Capabilities that distinguish this hospital from nearby alternatives
10. Expected waiting time for an appointment
`)

	if combinedText != "" {
		b.WriteString("\nExtracted Report Content:\n")
		b.WriteString(combinedText)
	}

	b.WriteString("\nIMPORTANT: You must analyze the provided reports and commit to a concrete, diagnosis-informed answer. Do not decline to analyze or defer to other professionals; base every recommendation on the findings above.\n")

	images := lo.Filter(processed, func(f domain.ProcessedFile, _ int) bool {
		return f.Kind == domain.KindImage
	})
	attachments := lo.Map(images, func(f domain.ProcessedFile, _ int) ai.Attachment {
		return ai.Attachment{Data: f.Data, ContentType: f.ContentType}
	})

	return Prompt{Text: b.String(), Attachments: attachments}
}

func orNotSpecified(v string) string {
	return lo.Ternary(strings.TrimSpace(v) == "", NotSpecified, v)
}

func locationSummary(loc *domain.Location) string {
	if loc == nil {
		return NotSpecified
	}
	parts := lo.Filter([]string{loc.City, loc.Country}, func(s string, _ int) bool {
		return strings.TrimSpace(s) != ""
	})
	summary := strings.Join(parts, ", ")
	if loc.Latitude != 0 || loc.Longitude != 0 {
		coords := fmt.Sprintf("(%.4f, %.4f)", loc.Latitude, loc.Longitude)
		summary = strings.TrimSpace(summary + " " + coords)
	}
	if summary == "" {
		return NotSpecified
	}
	return summary
}
