package language

import "testing"

func TestDetectEnglish(t *testing.T) {
	text := "The government said on Monday that it has approved the plan and that work is expected to begin in the spring."
	if got := Detect(text); got != "en" {
		t.Errorf("expected en, got %q", got)
	}
}

func TestDetectGerman(t *testing.T) {
	text := "Die Regierung hat den Plan am Montag gebilligt und die Arbeiten sollen im Frühjahr beginnen, nicht erst im Sommer."
	if got := Detect(text); got != "de" {
		t.Errorf("expected de, got %q", got)
	}
}

func TestDetectFrench(t *testing.T) {
	text := "Le gouvernement a approuvé le plan lundi et les travaux devraient commencer dans le courant du printemps pour les régions concernées."
	if got := Detect(text); got != "fr" {
		t.Errorf("expected fr, got %q", got)
	}
}

func TestDetectChinese(t *testing.T) {
	text := "政府於星期一批准該計劃，工程預計將於春季開始，有關部門表示會密切監察進度並定期公布最新情況。"
	if got := Detect(text); got != "zh" {
		t.Errorf("expected zh, got %q", got)
	}
}

func TestDetectJapanese(t *testing.T) {
	text := "政府は月曜日に計画を承認したと発表しました。工事は春に始まる見込みで、関係者は進捗を定期的に公表するとしています。"
	if got := Detect(text); got != "ja" {
		t.Errorf("expected ja, got %q", got)
	}
}

func TestDetectRussian(t *testing.T) {
	text := "Правительство одобрило план в понедельник, и работы должны начаться весной, сообщили в ведомстве журналистам."
	if got := Detect(text); got != "ru" {
		t.Errorf("expected ru, got %q", got)
	}
}

func TestDetectShortText(t *testing.T) {
	for _, text := range []string{"", "Breaking", "ok then", "短い"} {
		if got := Detect(text); got != Unknown {
			t.Errorf("Detect(%q) = %q, want %q", text, got, Unknown)
		}
	}
}

func TestDetectAmbiguous(t *testing.T) {
	// Long enough, but no dictionary or script evidence.
	text := "zorp blint kravle mon dupp werrin solt fank kib drossel pimt varn"
	if got := Detect(text); got != Unknown {
		t.Errorf("expected %q for gibberish, got %q", Unknown, got)
	}
}

func TestDetectDeterministic(t *testing.T) {
	text := "The markets closed higher on Friday as investors bet that the rate cycle has peaked for the year."
	first := Detect(text)
	for i := 0; i < 5; i++ {
		if got := Detect(text); got != first {
			t.Fatalf("detection not deterministic: %q then %q", first, got)
		}
	}
}

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"EN-us":   "en",
		"en":      "en",
		"zh-Hant": "zh",
		"":        Unknown,
		"???":     Unknown,
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}
