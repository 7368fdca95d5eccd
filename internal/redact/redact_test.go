package redact

import (
	"strings"
	"testing"
)

var subject = Subject{
	LastName:   "Иванов",
	FirstName:  "Иван",
	MiddleName: "Иванович",
	BirthDate:  "1960-03-12",
	SNILS:      "123-456-789 01",
}

func TestApplyFullNameArrangements(t *testing.T) {
	cases := []string{
		"Заявитель Иванов Иван Иванович обратился 5 мая.",
		"Заявитель Иван Иванович Иванов обратился 5 мая.",
		"Заявитель Иванов И. И. обратился 5 мая.",
		"Заявитель И. И. Иванов обратился 5 мая.",
		"Заявитель Иванов И.И. обратился 5 мая.",
	}
	for _, in := range cases {
		got := Apply(in, subject)
		if strings.Contains(got, "Иванов") || strings.Contains(got, "Иванович") {
			t.Fatalf("name survived: %q -> %q", in, got)
		}
		if !strings.Contains(got, NameMarker) {
			t.Fatalf("no marker in %q", got)
		}
	}
}

func TestApplyIsCaseInsensitive(t *testing.T) {
	got := Apply("гражданин ИВАНОВ подал заявление, иванов подтвердил", subject)
	if strings.Contains(strings.ToLower(got), "иванов") {
		t.Fatalf("case variant survived: %q", got)
	}
}

func TestApplyWholeWordsOnly(t *testing.T) {
	got := Apply("проживает в Ивановской области", subject)
	if got != "проживает в Ивановской области" {
		t.Fatalf("partial word replaced: %q", got)
	}
}

func TestApplyShortPartsNotChasedAlone(t *testing.T) {
	s := Subject{LastName: "Ли", FirstName: "Ян"}
	got := Apply("Ли и Ян упомянуты в ли-бо каком контексте", s)
	// Two-rune parts only match inside combined forms.
	if !strings.Contains(got, "ли-бо") {
		t.Fatalf("short part replaced mid-word: %q", got)
	}
	if !strings.Contains(Apply("заявитель Ли Ян", s), NameMarker) {
		t.Fatal("combined short form not replaced")
	}
}

func TestApplyBirthDateForms(t *testing.T) {
	in := "родился 12.03.1960, в анкете 1960-03-12, в копии 12/03/1960"
	got := Apply(in, subject)
	if strings.Contains(got, "1960") {
		t.Fatalf("date survived: %q", got)
	}
	if n := strings.Count(got, DOBMarker); n != 3 {
		t.Fatalf("marker count = %d in %q", n, got)
	}
}

func TestApplyUnrelatedDatesSurvive(t *testing.T) {
	got := Apply("принят на работу 01.09.1985", subject)
	if !strings.Contains(got, "01.09.1985") {
		t.Fatalf("unrelated date redacted: %q", got)
	}
}

func TestApplyIDRenderings(t *testing.T) {
	in := "СНИЛС 123-456-789 01, дубликат 123-456-789-01, анкета 123 456 789 01, сырой 12345678901"
	got := Apply(in, subject)
	if strings.Contains(got, "123") {
		t.Fatalf("insurance number survived: %q", got)
	}
	if n := strings.Count(got, IDMarker); n != 4 {
		t.Fatalf("marker count = %d in %q", n, got)
	}
}

func TestApplyIDInsideLongerNumberSurvives(t *testing.T) {
	got := Apply("входящий номер 123456789012", subject)
	if !strings.Contains(got, "123456789012") {
		t.Fatalf("longer number damaged: %q", got)
	}
}

func TestApplyIdempotent(t *testing.T) {
	in := "Иванов Иван Иванович, 12.03.1960, СНИЛС 123-456-789 01, проверен повторно: Иванов"
	once := Apply(in, subject)
	twice := Apply(once, subject)
	if once != twice {
		t.Fatalf("not idempotent:\n once: %q\ntwice: %q", once, twice)
	}
}

func TestApplyEmptySubject(t *testing.T) {
	in := "Иванов Иван Иванович, 12.03.1960, СНИЛС 123-456-789 01"
	if got := Apply(in, Subject{}); got != in {
		t.Fatalf("empty subject changed text: %q", got)
	}
}

func TestApplyTwoPartName(t *testing.T) {
	s := Subject{LastName: "Петрова", FirstName: "Анна"}
	got := Apply("Петрова Анна, также Анна Петрова, также Петрова А.", s)
	if strings.Contains(got, "Петрова") || strings.Contains(got, "Анна") {
		t.Fatalf("two-part name survived: %q", got)
	}
}

func TestApplyLongestCandidateWins(t *testing.T) {
	got := Apply("Иванов Иван Иванович", subject)
	if got != NameMarker {
		t.Fatalf("full name replaced piecewise: %q", got)
	}
}

func TestApplyPunctuationBoundaries(t *testing.T) {
	got := Apply("(Иванов), «Иванов», Иванов.", subject)
	if strings.Contains(got, "Иванов") {
		t.Fatalf("punctuation-adjacent name survived: %q", got)
	}
}
