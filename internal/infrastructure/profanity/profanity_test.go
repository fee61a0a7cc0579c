package profanity

import "testing"

// The shipped word list expands into variants carrying regex metacharacters
// ($, +, |, !); building the master expression must survive all of them.
func TestFilterBuildsFromEmbeddedWordList(t *testing.T) {
	f := NewProfanityFilter()
	if f == nil || f.regex == nil {
		t.Fatal("filter did not compile from the embedded word list")
	}
}

func TestContainsProfanity(t *testing.T) {
	f := NewProfanityFilter()

	tests := []struct {
		name string
		text string
		want bool
	}{
		{name: "empty", text: "", want: false},
		{name: "clean", text: "roll for initiative", want: false},
		{name: "plain", text: "fuck this goblin", want: true},
		{name: "leet digits", text: "sh1t happens", want: true},
		{name: "dollar substitution", text: "$hit happens", want: true},
		{name: "separator obfuscation", text: "f.u.c.k", want: true},
		{name: "inside larger word", text: "scunthorpe", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.ContainsProfanity(tt.text); got != tt.want {
				t.Errorf("ContainsProfanity(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}
