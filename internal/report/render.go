// Package report renders a merged prospect profile and its verification
// outcome as a markdown document for delivery.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sells-group/prospect-cli/internal/model"
)

// Render produces the markdown research report. Profile and verification
// may each be nil; missing sections are omitted rather than faked.
func Render(subject model.Subject, profile *model.MergedProfile, verification *model.VerificationReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Prospect Research: %s\n", subject.Name)
	if loc := location(subject); loc != "" {
		fmt.Fprintf(&b, "\n%s\n", loc)
	}

	if profile != nil {
		fmt.Fprintf(&b, "\nOverall confidence: %.0f%%\n", profile.OverallConfidence*100)

		if narrative := profile.FieldString("summary.narrative"); narrative != "" {
			fmt.Fprintf(&b, "\n## Summary\n\n%s\n", narrative)
		}

		renderFields(&b, profile)
		renderConflicts(&b, profile)
	}

	if verification != nil {
		renderVerification(&b, verification)
	}

	if profile != nil && len(profile.Sources) > 0 {
		b.WriteString("\n## Sources\n\n")
		for _, src := range profile.Sources {
			if src.URL != "" {
				fmt.Fprintf(&b, "- %s (%s)\n", src.Name, src.URL)
			} else {
				fmt.Fprintf(&b, "- %s\n", src.Name)
			}
		}
	}

	return b.String()
}

func location(s model.Subject) string {
	switch {
	case s.City != "" && s.State != "":
		return s.City + ", " + s.State
	case s.State != "":
		return s.State
	default:
		return s.City
	}
}

func renderFields(b *strings.Builder, profile *model.MergedProfile) {
	if len(profile.Fields) == 0 {
		return
	}
	paths := make([]string, 0, len(profile.Fields))
	for path := range profile.Fields {
		if path == "summary.narrative" {
			continue
		}
		paths = append(paths, path)
	}
	if len(paths) == 0 {
		return
	}
	sort.Strings(paths)

	b.WriteString("\n## Profile\n\n")
	for _, path := range paths {
		fc := profile.Fields[path]
		fmt.Fprintf(b, "- **%s**: %s — %s (%.0f%%)\n",
			path, formatValue(fc.Value), fc.Level, fc.Score*100)
	}
}

func renderConflicts(b *strings.Builder, profile *model.MergedProfile) {
	if len(profile.Conflicts) == 0 {
		return
	}
	b.WriteString("\n## Conflicting findings\n\n")
	for _, c := range profile.Conflicts {
		fmt.Fprintf(b, "- **%s**: %s\n", c.FieldPath, c.Note)
	}
}

func renderVerification(b *strings.Builder, r *model.VerificationReport) {
	b.WriteString("\n## Verification\n\n")
	fmt.Fprintf(b, "%d verified, %d partial, %d unverifiable, %d contradicted (confidence %.0f%%)\n",
		r.Verified, r.Partial, r.Unverifiable, r.Contradicted, r.OverallConfidence*100)

	if len(r.Hallucinations) > 0 {
		b.WriteString("\n### Flagged claims\n\n")
		for _, h := range r.Hallucinations {
			fmt.Fprintf(b, "- %s: claimed %s, source reports %s (%s)\n",
				h.Claim.Description, formatValue(h.Claim.Value), formatValue(h.APIValue), h.Source)
		}
	}

	for _, rec := range r.Recommendations {
		fmt.Fprintf(b, "\n> %s\n", rec)
	}
}

// formatValue renders a merged value compactly: money-scale numbers get
// thousands separators, slices join with commas.
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "(none)"
	case string:
		return val
	case bool:
		if val {
			return "yes"
		}
		return "no"
	case float64:
		if val == float64(int64(val)) && val >= 1000 {
			return "$" + groupThousands(int64(val))
		}
		return fmt.Sprintf("%v", val)
	case []string:
		return strings.Join(val, ", ")
	case []any:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = formatValue(item)
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprintf("%v", val)
	}
}

func groupThousands(n int64) string {
	s := fmt.Sprintf("%d", n)
	var out []byte
	for i, c := range []byte(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, c)
	}
	return string(out)
}
