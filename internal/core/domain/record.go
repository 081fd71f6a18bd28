package domain

// Record is one structured record extracted from a source document.
// Extraction never fails for unparseable content; it returns a record with
// empty fields so every downloaded file appears in the aggregate output.
type Record struct {
	SourceFile        string
	FirstName         string
	LastName          string
	DateOfBirth       string
	RecordNumber      string
	CaseNumber        string
	IncidentDate      string
	ProviderFirst     string
	ProviderLast      string
	ExamDate          string
	ExamPlace         string
	Transcriptionist  string
	DictationDate     string
	TranscriptionDate string
	JobNumber         string
	CaseCode          string
}

// IsEmpty reports whether extraction found no field values at all.
func (r Record) IsEmpty() bool {
	return r.FirstName == "" && r.LastName == "" && r.DateOfBirth == "" &&
		r.RecordNumber == "" && r.CaseNumber == "" && r.IncidentDate == "" &&
		r.ExamDate == "" && r.JobNumber == ""
}
