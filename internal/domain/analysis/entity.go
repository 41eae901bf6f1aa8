package analysis

import (
	"time"
)

// Urgency enum
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyNormal Urgency = "normal"
	UrgencyHigh   Urgency = "high"
)

// PatientInfo holds the structured metadata sent alongside the report files.
// Fields other than Name are optional; the composer substitutes an explicit
// "Not specified" sentinel for anything the caller left blank.
type PatientInfo struct {
	Name     string  `json:"name" validate:"required"`
	Age      string  `json:"age,omitempty"`
	Gender   string  `json:"gender,omitempty"`
	Symptoms string  `json:"symptoms,omitempty"`
	Urgency  Urgency `json:"urgency,omitempty" validate:"omitempty,oneof=low normal high"`
}

// Location of the patient, used only to anchor hospital recommendations.
type Location struct {
	City      string  `json:"city,omitempty"`
	Country   string  `json:"country,omitempty"`
	Latitude  float64 `json:"latitude,omitempty" validate:"omitempty,min=-90,max=90"`
	Longitude float64 `json:"longitude,omitempty" validate:"omitempty,min=-180,max=180"`
}

// Submission is one complete analysis request: the decoded `data` form field
// plus the uploaded files. Files are ordered as uploaded and that order is
// preserved through extraction and prompt composition.
type Submission struct {
	Patient       PatientInfo    `json:"patientInfo"`
	SelectedTests []string       `json:"medicalData"`
	Location      *Location      `json:"location,omitempty"`
	Files         []UploadedFile `json:"-"`
}

// UploadedFile is a transient on-disk copy of one multipart file part.
// The storage path is owned by the request that created it and is removed
// unconditionally once a response has been produced.
type UploadedFile struct {
	OriginalName string
	SizeBytes    int64
	StoragePath  string
	Kind         Kind
	ContentType  string
}

// ProcessedFile is the immutable extraction output for one uploaded file.
// Images carry a base64 payload in Data; PDF and text files carry extracted
// text in Text. A PDF whose extraction failed still appears here with a
// placeholder Text so the request can proceed.
type ProcessedFile struct {
	Name        string
	ContentType string
	Kind        Kind
	Text        string
	Data        string
}

// AnalysisResult is the successful terminal output of one request.
type AnalysisResult struct {
	AnalysisText  string
	Timestamp     time.Time
	PatientName   string
	FilesUploaded int
	FilesAnalyzed int
}
