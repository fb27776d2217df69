package parser

import (
	"regexp"
	"strings"
)

// Sentinels bounding the transaction region of a Société Générale statement.
// Both are matched case-sensitively; diacritics are significant.
const (
	sgStartSentinel = "SOLDE PRÉCÉDENT"
	sgEndSentinel   = "TOTAUX DES MOUVEMENTS"
)

// sgIgnorePatterns lists boilerplate that pdftotext interleaves with the
// transaction table: branding, contact and legal blocks, page and envelope
// numbering, and repeated column headers.
var sgIgnorePatterns = []string{
	`VOS CONTACTS`,
	`Votre Banque à Distance`,
	`Internet\s*:\s*\S+\.(?:fr|com)`,
	`éléphone\s*:\s*\d+`,
	`^Courrier\s*:\s*\d+`,
	`Service d['’]urgence 24 ?h ?/ ?24`,
	`Perte ou vol de vos cartes`,
	`Pour toute insatisfaction`,
	`L['’]agence\s*:\s*votre premier`,
	`Le Service Relations Clientèle`,
	`Le Médiateur\s*:\s*En dernier`,
	`Société Générale`,
	`S\.A\. au capital`,
	`RCS Paris`,
	`Siège Social`,
	`bd Haussmann`,
	`suite >>>`,
	`^RA\d+`,
	`N° ADEME`,
	`Opération exonérée`,
	`Votre compte est éligible`,
	`Fonds de Garantie`,
	`SG-SocieteGenerale\.Reclamations@socgen\.com`,
	`courrier à : Le médiateur`,
	`RELEVÉ DE COMPTE`,
	`^COMPTE .+ - en euros`,
	`^n°\s*\d{5}\s+\d{5}\s+\w{11}\s+\d{2}\s*$`,
	`du \d{2}/\d{2}/\d{4} au \d{2}/\d{2}/\d{4}`,
	`envoi n°\s*\d+\s+Page \d+/\d+`,
	`Nature de l['’]opération`,
	`^Débit$`,
	`^Crédit$`,
}

// Filter removes boilerplate lines and truncates at a terminal sentinel.
type Filter struct {
	Ignore []*regexp.Regexp
	Stop   string
}

// NewFilter compiles patterns case-insensitively. stop may be empty.
func NewFilter(stop string, patterns ...string) *Filter {
	f := &Filter{Stop: stop}
	for _, p := range patterns {
		f.Ignore = append(f.Ignore, regexp.MustCompile(`(?i)`+p))
	}
	return f
}

func newStatementFilter() *Filter {
	return NewFilter(sgEndSentinel, sgIgnorePatterns...)
}

// IsBoilerplate reports whether any ignore pattern matches line.
func (f *Filter) IsBoilerplate(line string) bool {
	line = strings.TrimSpace(line)
	for _, re := range f.Ignore {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

// Apply returns lines with boilerplate removed. The stop sentinel line and
// everything after it are dropped, so Apply is idempotent.
func (f *Filter) Apply(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if f.Stop != "" && strings.Contains(line, f.Stop) {
			break
		}
		if f.IsBoilerplate(line) {
			continue
		}
		out = append(out, line)
	}
	return out
}

// StartAfter returns the lines following the first line containing marker.
// When marker is absent it returns lines unchanged and false.
func StartAfter(lines []string, marker string) ([]string, bool) {
	for i, line := range lines {
		if strings.Contains(line, marker) {
			return lines[i+1:], true
		}
	}
	return lines, false
}
