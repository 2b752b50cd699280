// Package indictment pulls semi-structured fields out of the text of a
// criminal indictment ("denúncia") using ordered pattern rules.
package indictment

import "strings"

// Info is the structured view of an indictment. List fields keep first-seen
// order and never hold the same string twice.
type Info struct {
	Defendants       []string `json:"defendants"`
	Victims          []string `json:"victims"`
	Charges          []string `json:"charges"`
	IncidentDate     string   `json:"incident_date"`
	IncidentLocation string   `json:"incident_location"`
	Witnesses        []string `json:"witnesses"`
}

// Empty reports whether no field was populated.
func (i Info) Empty() bool {
	return len(i.Defendants) == 0 && len(i.Victims) == 0 && len(i.Charges) == 0 &&
		i.IncidentDate == "" && i.IncidentLocation == "" && len(i.Witnesses) == 0
}

// Extract applies DefaultRules to text.
func Extract(text string) Info {
	return DefaultRules.Extract(text)
}

// Extract applies the rule set to text. It never fails; fields without a
// match stay empty.
func (rs RuleSet) Extract(text string) Info {
	info := Info{
		Defendants: []string{},
		Victims:    []string{},
		Charges:    []string{},
		Witnesses:  []string{},
	}
	for _, fr := range rs {
		if fr.Multi {
			list := info.list(fr.Field)
			if list == nil {
				continue
			}
			*list = collectAll(*list, fr, text)
			continue
		}
		slot := info.single(fr.Field)
		if slot == nil || *slot != "" {
			continue
		}
		*slot = firstMatch(fr, text)
	}
	return info
}

func (i *Info) list(f Field) *[]string {
	switch f {
	case FieldDefendants:
		return &i.Defendants
	case FieldVictims:
		return &i.Victims
	case FieldCharges:
		return &i.Charges
	case FieldWitnesses:
		return &i.Witnesses
	}
	return nil
}

func (i *Info) single(f Field) *string {
	switch f {
	case FieldIncidentDate:
		return &i.IncidentDate
	case FieldIncidentLocation:
		return &i.IncidentLocation
	}
	return nil
}

func collectAll(dst []string, fr FieldRules, text string) []string {
	for _, r := range fr.Rules {
		for _, m := range r.Pattern.FindAllStringSubmatch(text, -1) {
			if len(m) < 2 {
				continue
			}
			values := []string{m[1]}
			if fr.Split != nil {
				values = fr.Split.Split(m[1], -1)
			}
			for _, v := range values {
				dst = appendUnique(dst, strings.TrimSpace(v))
			}
		}
	}
	return dst
}

func firstMatch(fr FieldRules, text string) string {
	for _, r := range fr.Rules {
		m := r.Pattern.FindStringSubmatch(text)
		if len(m) >= 2 {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

// appendUnique compares by exact string equality.
func appendUnique(dst []string, v string) []string {
	if v == "" {
		return dst
	}
	for _, have := range dst {
		if have == v {
			return dst
		}
	}
	return append(dst, v)
}
