package types

import "testing"

func TestParseEducationLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    EducationLevel
		wantErr bool
	}{
		{"", EducationUnknown, false},
		{"Diploma", EducationDiploma, false},
		{"bachelor", EducationBachelor, false},
		{" MASTER ", EducationMaster, false},
		{"phd", EducationPhD, false},
		{"doctorate", EducationUnknown, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseEducationLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEducationLevelTextRoundTrip(t *testing.T) {
	var l EducationLevel
	if err := l.UnmarshalText([]byte("master")); err != nil {
		t.Fatal(err)
	}
	text, _ := l.MarshalText()
	if string(text) != "master" {
		t.Errorf("MarshalText = %q", text)
	}
}

func TestDocumentIsPDF(t *testing.T) {
	tests := []struct {
		name string
		doc  Document
		want bool
	}{
		{"extension", Document{Name: "cv.PDF"}, true},
		{"magic bytes", Document{Name: "upload", Data: []byte("%PDF-1.7\n...")}, true},
		{"docx", Document{Name: "cv.docx", Data: []byte("PK\x03\x04")}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.doc.IsPDF(); got != tt.want {
				t.Errorf("IsPDF() = %v, want %v", got, tt.want)
			}
		})
	}
}
