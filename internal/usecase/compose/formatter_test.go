package compose

import "testing"

func TestFormatter_Format(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "between and",
			input: "Disruption between London and Leeds",
			want:  "Disruption between #London and #Leeds",
		},
		{
			name:  "operator at start",
			input: "Northern services delayed",
			want:  "#Northern services delayed",
		},
		{
			name:  "from and",
			input: "Trains from Liverpool and Southport",
			want:  "Trains from #Liverpool and #Southport",
		},
		{
			name:  "only first capital after each trigger occurrence",
			input: "Lines between Liverpool Central and Hunts Cross closed",
			want:  "Lines between #Liverpool Central and #Hunts Cross closed",
		},
		{
			name:  "repeated triggers",
			input: "between Crewe and Derby and between Stoke and Leek",
			want:  "between #Crewe and #Derby and between ##Stoke and #Leek",
		},
		{
			name:  "trigger inside a word still matches",
			input: "Standard service from Chester",
			want:  "Standard service from ##Chester",
		},
		{
			name:  "operator tagged by trigger and name",
			input: "Disruption between Northern and Leeds",
			want:  "Disruption between ##Northern and #Leeds",
		},
		{
			name:  "operator followed by punctuation",
			input: "Merseyrail's trains",
			want:  "#Merseyrail's trains",
		},
		{
			name:  "operator prefix of longer word",
			input: "Northernmost line",
			want:  "Northernmost line",
		},
		{
			name:  "earlier tag creates operator boundary",
			input: "fromNorthern",
			want:  "from##Northern",
		},
		{
			name:  "no capital after trigger",
			input: "delays between stations",
			want:  "delays between stations",
		},
		{
			name:  "multibyte text",
			input: "Crewé – services between Crewe and Derby",
			want:  "Crewé – services between #Crewe and #Derby",
		},
		{
			name:  "empty",
			input: "",
			want:  "",
		},
	}

	f := NewFormatter(nil, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.Format(tt.input); got != tt.want {
				t.Errorf("Format(%q)\n got: %q\nwant: %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestFormatter_CustomOperators(t *testing.T) {
	f := NewFormatter(nil, []string{"TransPennine Express", "Avanti"})

	tests := []struct {
		input string
		want  string
	}{
		{input: "Avanti West Coast delays", want: "#Avanti West Coast delays"},
		{input: "TransPennine Express cancellations", want: "#TransPennine Express cancellations"},
		{input: "from TransPennine Express", want: "from ##TransPennine Express"},
		{input: "Northern services", want: "Northern services"},
	}

	for _, tt := range tests {
		if got := f.Format(tt.input); got != tt.want {
			t.Errorf("Format(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestFormatter_CustomTriggers(t *testing.T) {
	f := NewFormatter([]string{"at"}, []string{})

	got := f.Format("Signalling fault at Preston")
	if want := "Signalling fault at #Preston"; got != want {
		t.Errorf("Format() = %q, want %q", got, want)
	}
}
