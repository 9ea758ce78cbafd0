package annotation

// SpeakerAlias maps real speaker names to dialogue-local labels such as "Person A".
type SpeakerAlias map[string]string

// Label returns the alias for speaker and whether one was assigned.
func (a SpeakerAlias) Label(speaker string) (string, bool) {
	l, ok := a[speaker]
	return l, ok
}

// Anonymize replaces each speaker with a label. The first distinct speaker becomes "Person A",
// the next "Person B", and so on; past "Z" labels continue as "AA", "AB", ...
// The result depends only on the order of speakers.
func Anonymize(speakers []string) ([]string, SpeakerAlias) {
	alias := make(SpeakerAlias)
	out := make([]string, len(speakers))
	for i, s := range speakers {
		l, ok := alias[s]
		if !ok {
			l = "Person " + letterLabel(len(alias))
			alias[s] = l
		}
		out[i] = l
	}
	return out, alias
}

// PresentSpeakers returns the speaker labels as they appear in the prompt. The parser compares
// model output against this same list.
func PresentSpeakers(d Dialogue, anonymize bool) ([]string, SpeakerAlias) {
	speakers := d.Speakers()
	if !anonymize {
		return speakers, nil
	}
	return Anonymize(speakers)
}

func letterLabel(n int) string {
	var b []byte
	for n >= 0 {
		b = append([]byte{byte('A' + n%26)}, b...)
		n = n/26 - 1
	}
	return string(b)
}
