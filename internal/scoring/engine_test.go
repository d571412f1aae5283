package scoring

import (
	"context"
	"errors"
	"testing"

	"callscreen/internal/types"
)

type stubExtractor struct {
	profile types.ExtractedProfile
	err     error
	calls   int
}

func (s *stubExtractor) Extract(ctx context.Context, doc types.Document) (types.ExtractedProfile, error) {
	s.calls++
	return s.profile, s.err
}

var resume = types.Document{Name: "cv.pdf", Data: []byte("%PDF-1.7")}

func TestScoreScenarios(t *testing.T) {
	tests := []struct {
		name    string
		profile types.ExtractedProfile
		spec    types.JobSpecification
		want    float64
	}{
		{
			name:    "band only",
			profile: types.ExtractedProfile{},
			spec:    types.JobSpecification{Education: types.EducationBachelor, Skills: []string{"go"}},
			want:    5.00,
		},
		{
			name: "master over bachelor with six years",
			profile: types.ExtractedProfile{
				Email:      "a@example.com",
				Phone:      "+1 555 0100",
				Education:  []types.EducationEntry{{Degree: "Bachelor of Science"}, {Degree: "Master of Computer Science"}},
				Experience: []string{"Intern, 1 year", "Senior engineer at Acme for 6 years"},
				Skills:     []string{"Go", "Kubernetes", "SQL", "Docker", "Rust"},
			},
			spec: types.JobSpecification{
				Education: types.EducationBachelor,
				Skills:    []string{"go", "kubernetes", "sql", "docker", "terraform"},
			},
			want: 45.50,
		},
		{
			name: "phd over master",
			profile: types.ExtractedProfile{
				Email:      "a@example.com",
				Education:  []types.EducationEntry{{Degree: "PhD in Physics"}},
				Experience: []string{"Researcher, 3 years"},
			},
			spec: types.JobSpecification{Education: types.EducationMaster},
			want: 5 + 20 + 5,
		},
		{
			name: "phd over bachelor earns nothing",
			profile: types.ExtractedProfile{
				Education:  []types.EducationEntry{{Degree: "PhD"}},
				Experience: []string{"two years of consulting"},
			},
			spec: types.JobSpecification{Education: types.EducationBachelor},
			want: 5,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := NewEngine(&stubExtractor{profile: tt.profile}, nil, nil)
			got := engine.Score(context.Background(), resume, tt.spec)
			if got.Total != tt.want {
				t.Errorf("Total = %.2f, want %.2f (breakdown %+v)", got.Total, tt.want, got)
			}
			if !got.Extracted {
				t.Error("Extracted should be true")
			}
		})
	}
}

func TestScoreExtractionFailure(t *testing.T) {
	extractor := &stubExtractor{err: errors.New("model unavailable")}
	engine := NewEngine(extractor, nil, nil)

	got := engine.Score(context.Background(), resume, types.JobSpecification{})
	if got.Total != 0 || got.Extracted {
		t.Errorf("expected a zero, unextracted result, got %+v", got)
	}
	if extractor.calls != 1 {
		t.Errorf("extractor called %d times, want 1", extractor.calls)
	}
}

func TestSkillScoreGrid(t *testing.T) {
	want := []float64{0, 2.5, 5, 7.5, 10, 12.5, 12.5, 12.5}
	for n, w := range want {
		if got := SkillScore(n); got != w {
			t.Errorf("SkillScore(%d) = %v, want %v", n, got, w)
		}
	}
}

func TestScoreIgnoresCaseAndOrder(t *testing.T) {
	base := types.ExtractedProfile{
		Email:      "x@example.com",
		Experience: []string{"4 Years backend"},
		Skills:     []string{"python", "GO", "Sql"},
	}
	spec := types.JobSpecification{Skills: []string{"Go", "SQL", "Python", "Java"}}

	shuffled := base
	shuffled.Skills = []string{"sql", "Python", "go"}
	shuffledSpec := types.JobSpecification{Skills: []string{"java", "PYTHON", "sql", "go"}}

	a := Evaluate(base, spec, nil)
	b := Evaluate(shuffled, shuffledSpec, nil)
	if a.Total != b.Total {
		t.Errorf("totals differ: %.2f vs %.2f", a.Total, b.Total)
	}
	if a.SkillScore != 7.5 {
		t.Errorf("SkillScore = %v, want 7.5", a.SkillScore)
	}
}

func TestYearsOfExperience(t *testing.T) {
	tests := []struct {
		name    string
		entries []string
		want    int
	}{
		{"none", nil, 0},
		{"no year phrase", []string{"Worked at Acme since 2019"}, 0},
		{"singular", []string{"1 year at Globex"}, 1},
		{"max across entries", []string{"2 years", "7 YEARS at Initech", "3years"}, 7},
		{"first match per entry", []string{"3 years then 9 years"}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := YearsOfExperience(tt.entries); got != tt.want {
				t.Errorf("YearsOfExperience() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestExperienceBands(t *testing.T) {
	tests := map[int]float64{0: 5, 1: 12, 2: 12, 3: 20, 4: 20, 5: 25, 30: 25}
	for years, want := range tests {
		if got := ExperienceScore(years); got != want {
			t.Errorf("ExperienceScore(%d) = %v, want %v", years, got, want)
		}
	}
}

func TestHighestEducation(t *testing.T) {
	tests := []struct {
		name    string
		entries []types.EducationEntry
		want    types.EducationLevel
	}{
		{"empty", nil, types.EducationUnknown},
		{"unrecognized", []types.EducationEntry{{Degree: "Bootcamp certificate"}}, types.EducationUnknown},
		{"highest wins", []types.EducationEntry{{Degree: "MASTER of Arts"}, {Degree: "Diploma in IT"}}, types.EducationMaster},
		{"phd", []types.EducationEntry{{Degree: "PhD, Computer Science"}}, types.EducationPhD},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HighestEducation(tt.entries); got != tt.want {
				t.Errorf("HighestEducation() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEducationBonus(t *testing.T) {
	tests := []struct {
		candidate, required types.EducationLevel
		want                float64
	}{
		{types.EducationPhD, types.EducationMaster, 5},
		{types.EducationMaster, types.EducationBachelor, 3},
		{types.EducationPhD, types.EducationBachelor, 0},
		{types.EducationBachelor, types.EducationMaster, 0},
		{types.EducationUnknown, types.EducationBachelor, 0},
		{types.EducationMaster, types.EducationUnknown, 0},
	}
	for _, tt := range tests {
		if got := EducationBonus(tt.candidate, tt.required); got != tt.want {
			t.Errorf("EducationBonus(%v, %v) = %v, want %v", tt.candidate, tt.required, got, tt.want)
		}
	}
}

func TestContactScore(t *testing.T) {
	if got := ContactScore("a@b.c", "123"); got != 7.5 {
		t.Errorf("both = %v", got)
	}
	if got := ContactScore("", "123"); got != 5 {
		t.Errorf("phone only = %v", got)
	}
	if got := ContactScore("  ", ""); got != 0 {
		t.Errorf("neither = %v", got)
	}
}

func TestGuardRecoversPanics(t *testing.T) {
	ran := false
	guard(nil, "boom", func() { panic("bad input") })
	guard(nil, "after", func() { ran = true })
	if !ran {
		t.Error("a panicking component must not stop later components")
	}
}
