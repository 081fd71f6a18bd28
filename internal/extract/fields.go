package extract

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/docrelay/docrelay/internal/core/domain"
)

// Field patterns are ordered most-specific first; the first capture that
// survives validation wins. Labels appear in source documents in both cased
// and uppercased forms, and a few with known typos (PROVIDER FRIST).
var fieldPatterns = map[string][]*regexp.Regexp{
	"first_name": {
		regexp.MustCompile(`(?im)FIRST\s+NAME\s*:\s*([A-Z][A-Z\s-]+?)\s*$`),
		regexp.MustCompile(`(?im)first\s+name[:\s]+([^\n\r,]+)`),
	},
	"last_name": {
		regexp.MustCompile(`(?im)LAST\s+NAME\s*:\s*([A-Z][A-Z\s-]+?)\s*$`),
		regexp.MustCompile(`(?im)last\s+name[:\s]+([^\n\r,]+)`),
	},
	"date_of_birth": {
		regexp.MustCompile(`(?i)Date\s+of\s+Birth\s*:\s*(\d{1,2}/\d{1,2}/\d{4})`),
		regexp.MustCompile(`(?i)DOB\s*:\s*(\d{1,2}/\d{1,2}/\d{4})`),
	},
	"record_number": {
		regexp.MustCompile(`(?i)Record\s*Number\s*:\s*(\d+\.\d+\.\d+)`),
		regexp.MustCompile(`(?i)MRN\s*:\s*(\d+\.\d+\.\d+)`),
		regexp.MustCompile(`~(\d+\.\d+\.\d+)~`),
	},
	"case_number": {
		regexp.MustCompile(`(?i)Case\s+Number\s*:\s*(\d+)`),
	},
	"incident_date": {
		regexp.MustCompile(`(?i)D/Accident\s*:\s*(\d{1,2}/\d{1,2}/\d{4})`),
		regexp.MustCompile(`(?i)Date\s+of\s+Accident\s*:\s*(\d{1,2}/\d{1,2}/\d{4})`),
		regexp.MustCompile(`(?i)Accident\s+Date\s*:\s*(\d{1,2}/\d{1,2}/\d{4})`),
		regexp.MustCompile(`(?i)D/Injury\s*:\s*(\d{1,2}/\d{1,2}/\d{4})`),
		regexp.MustCompile(`(?i)Date\s+of\s+Injury\s*:\s*(\d{1,2}/\d{1,2}/\d{4})`),
	},
	"provider_first": {
		regexp.MustCompile(`(?im)PROVIDER\s+FIRST\s*:\s*([A-Z][A-Z\s.\-]+?)\s*$`),
		regexp.MustCompile(`(?im)PROVIDER\s+FRIST\s*:\s*([A-Z][A-Z\s.\-]+?)\s*$`),
	},
	"provider_last": {
		regexp.MustCompile(`(?im)PROVIDER\s+LAST\s*:\s*([A-Z][A-Z\s.\-]+?)\s*$`),
	},
	"exam_date": {
		regexp.MustCompile(`(?i)Date\s+of\s+Exam\s*:\s*(\d{1,2}/\d{1,2}/\d{4})`),
		regexp.MustCompile(`(?i)Exam\s+Date\s*:\s*(\d{1,2}/\d{1,2}/\d{4})`),
	},
	"exam_place": {
		regexp.MustCompile(`(?im)Place\s+of\s+Exam\s*:\s*([A-Z][A-Za-z\s.'\-]+?)\s*$`),
	},
	"transcriptionist": {
		regexp.MustCompile(`(?i)Transcriptionist\s*:\s*([a-z]{2}/[a-z]{2})`),
		regexp.MustCompile(`([a-z]{2}/[a-z]{2})\s+DD:`),
	},
	"dictation_date": {
		regexp.MustCompile(`(?i)DD\s*:\s*(\d{1,2}/\d{1,2}/\d{4})`),
		regexp.MustCompile(`(?i)Dictation\s+Date\s*:\s*(\d{1,2}/\d{1,2}/\d{4})`),
	},
	"transcription_date": {
		regexp.MustCompile(`(?i)Transcription\s+Date\s*:\s*(\d{1,2}/\d{1,2}/\d{4})`),
	},
	"job_number": {
		regexp.MustCompile(`(?i)Job\s*:\s*(\d{4}-\d{2,3})`),
		regexp.MustCompile(`(?i)Job\s+(\d{4}-\d{2,3})`),
		regexp.MustCompile(`[A-Z]\s+(\d{4}-\d{2,3})\s+\d`),
	},
	"case_code": {
		regexp.MustCompile(`(?i)Case\s*:\s*([A-Za-z]{2,3}\s*\d+)(?:\s|$)`),
	},
}

var (
	dateFields = map[string]bool{
		"date_of_birth": true, "incident_date": true, "exam_date": true,
		"dictation_date": true, "transcription_date": true,
	}
	nameFields = map[string]bool{
		"first_name": true, "last_name": true,
		"provider_first": true, "provider_last": true,
	}

	spaceRun = regexp.MustCompile(`\s+`)

	// Values that mean a label matched against the wrong line.
	invalidNameValues = regexp.MustCompile(`(?i)(d/accident|d/injury|date\s+of|case\s+number|record\s+number|\d{1,2}/\d{1,2}/\d{4})`)

	caseCodeShape = regexp.MustCompile(`^[A-Z]{2,3}\d+$`)

	jobFromFilename = regexp.MustCompile(`[A-Z]\s+(\d{4}-\d{2,3})\s+\d`)
)

// fieldValue extracts one named field from text, returning the first match
// that passes per-kind validation. Missing fields come back empty.
func fieldValue(text, field string) string {
	for _, re := range fieldPatterns[field] {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		v := strings.TrimSpace(spaceRun.ReplaceAllString(m[1], " "))
		if v == "" {
			continue
		}
		switch {
		case nameFields[field]:
			if invalidNameValues.MatchString(v) {
				continue
			}
		case dateFields[field]:
			norm := NormalizeDate(v)
			if norm == "" {
				continue
			}
			v = norm
		case field == "case_code":
			v = strings.ToUpper(strings.ReplaceAll(v, " ", ""))
			if !caseCodeShape.MatchString(v) {
				continue
			}
		}
		return v
	}
	return ""
}

// ParseFields builds a Record from document text. Filenames carrying the
// merged marker hold free-paragraph dictation with no labeled fields, so only
// the source filename is kept for them. Parsing never errors: documents with
// no recognizable fields yield a record with the filename only.
func ParseFields(text, sourceFile string, mergedMarker string) domain.Record {
	rec := domain.Record{SourceFile: sourceFile}

	if text == "" {
		return rec
	}
	if mergedMarker != "" && strings.Contains(strings.ToUpper(sourceFile), strings.ToUpper(mergedMarker)) {
		return rec
	}

	rec.FirstName = fieldValue(text, "first_name")
	rec.LastName = fieldValue(text, "last_name")
	rec.DateOfBirth = fieldValue(text, "date_of_birth")
	rec.RecordNumber = fieldValue(text, "record_number")
	rec.CaseNumber = fieldValue(text, "case_number")
	rec.IncidentDate = fieldValue(text, "incident_date")
	rec.ProviderFirst = fieldValue(text, "provider_first")
	rec.ProviderLast = fieldValue(text, "provider_last")
	rec.ExamDate = fieldValue(text, "exam_date")
	rec.ExamPlace = fieldValue(text, "exam_place")
	rec.Transcriptionist = fieldValue(text, "transcriptionist")
	rec.DictationDate = fieldValue(text, "dictation_date")
	rec.TranscriptionDate = fieldValue(text, "transcription_date")
	rec.JobNumber = fieldValue(text, "job_number")
	rec.CaseCode = fieldValue(text, "case_code")

	// The job number is often only present in the filename.
	if rec.JobNumber == "" {
		if m := jobFromFilename.FindStringSubmatch(sourceFile); m != nil {
			rec.JobNumber = m[1]
		}
	}
	return rec
}

var dateLayouts = []string{
	"1/2/2006",
	"1-2-2006",
	"2006/1/2",
	"2006-1-2",
	"January 2, 2006",
	"January 2 2006",
	"2 January 2006",
	"20060102",
	"01022006",
}

// NormalizeDate reshapes the formats seen in source documents into MM/DD/YYYY.
// Unparseable input normalizes to the empty string.
func NormalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		return fmt.Sprintf("%02d/%02d/%04d", int(t.Month()), t.Day(), t.Year())
	}
	return ""
}
