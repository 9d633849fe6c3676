package datasource

import (
	"regexp"
	"strings"

	"stock-chatbot/src/models"
)

var codePattern = regexp.MustCompile(`^\d{6}$`)

// defaultSymbols are always searchable. Names are stored lower-case so
// lookups like "SK하이닉스" and "sk하이닉스" agree.
var defaultSymbols = []models.MSearchResult{
	{Name: "삼성전자", Code: "005930", Market: "KOSPI"},
	{Name: "sk하이닉스", Code: "000660", Market: "KOSPI"},
	{Name: "네이버", Code: "035420", Market: "KOSPI"},
	{Name: "카카오", Code: "035720", Market: "KOSPI"},
	{Name: "현대차", Code: "005380", Market: "KOSPI"},
	{Name: "lg에너지솔루션", Code: "373220", Market: "KOSPI"},
	{Name: "셀트리온", Code: "068270", Market: "KOSPI"},
	{Name: "삼성바이오로직스", Code: "207940", Market: "KOSPI"},
	{Name: "포스코홀딩스", Code: "005490", Market: "KOSPI"},
	{Name: "kb금융", Code: "105560", Market: "KOSPI"},
}

// IsStockCode reports whether s is a 6-digit KRX code
func IsStockCode(s string) bool {
	return codePattern.MatchString(s)
}

// -----------------------------------------------------------------------------

// Directory is the ordered list of searchable symbols. It is read-only after
// construction.
type Directory struct {
	entries []models.MSearchResult
	byName  map[string]int
	byCode  map[string]int
}

// -----------------------------------------------------------------------------

// NewDirectory builds the default directory plus extra symbols. Extras with a
// name or code already present replace the existing entry in place.
func NewDirectory(extra []models.MSymbolConfig) *Directory {
	d := &Directory{
		byName: make(map[string]int),
		byCode: make(map[string]int),
	}
	for _, s := range defaultSymbols {
		d.add(s)
	}
	for _, s := range extra {
		market := s.Market
		if market == "" {
			market = "KOSPI"
		}
		d.add(models.MSearchResult{Name: strings.ToLower(strings.TrimSpace(s.Name)), Code: s.Code, Market: market})
	}
	return d
}

// -----------------------------------------------------------------------------

func (d *Directory) add(s models.MSearchResult) {
	if s.Name == "" || !IsStockCode(s.Code) {
		return
	}
	if i, ok := d.byName[s.Name]; ok {
		delete(d.byCode, d.entries[i].Code)
		d.entries[i] = s
		d.byCode[s.Code] = i
		return
	}
	if i, ok := d.byCode[s.Code]; ok {
		delete(d.byName, d.entries[i].Name)
		d.entries[i] = s
		d.byName[s.Name] = i
		return
	}
	d.entries = append(d.entries, s)
	d.byName[s.Name] = len(d.entries) - 1
	d.byCode[s.Code] = len(d.entries) - 1
}

// -----------------------------------------------------------------------------

// Lookup resolves an exact name (case-insensitive) or a code
func (d *Directory) Lookup(query string) (models.MSearchResult, bool) {
	q := strings.ToLower(strings.TrimSpace(query))

	if i, ok := d.byName[q]; ok {
		return d.entries[i], true
	}
	if i, ok := d.byCode[q]; ok {
		return d.entries[i], true
	}
	return models.MSearchResult{}, false
}

// -----------------------------------------------------------------------------

// Search returns entries whose name contains keyword, in directory order
func (d *Directory) Search(keyword string) []models.MSearchResult {
	kw := strings.ToLower(strings.TrimSpace(keyword))
	if kw == "" {
		return nil
	}

	var out []models.MSearchResult
	for _, e := range d.entries {
		if strings.Contains(e.Name, kw) || e.Code == kw {
			out = append(out, e)
		}
	}
	return out
}

// -----------------------------------------------------------------------------

// Entries returns a copy of the directory
func (d *Directory) Entries() []models.MSearchResult {
	return append([]models.MSearchResult(nil), d.entries...)
}

// -----------------------------------------------------------------------------

// Names lists every name in directory order
func (d *Directory) Names() []string {
	names := make([]string, len(d.entries))
	for i, e := range d.entries {
		names[i] = e.Name
	}
	return names
}
