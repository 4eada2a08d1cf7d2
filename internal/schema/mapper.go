package schema

import (
	"strings"
	"unicode"

	"github.com/schollz/closestmatch"

	"github.com/ginjaninja78/separador/internal/types"
)

// =============================================================================
// ROLES
// =============================================================================

// Role is a canonical field a source column can play.
type Role int

const (
	RoleSupplierLine Role = iota
	RoleCategory
	RoleDocumentTypeLine
	RolePeriod
	RolePaymentDate
	RoleStatus
	RoleAmount
	RoleCode
	RoleDocumentNumber
)

var roleNames = map[Role]string{
	RoleSupplierLine:     "SUPPLIER_LINE",
	RoleCategory:         "CATEGORY",
	RoleDocumentTypeLine: "DOCUMENT_TYPE_LINE",
	RolePeriod:           "PERIOD",
	RolePaymentDate:      "PAYMENT_DATE",
	RoleStatus:           "STATUS",
	RoleAmount:           "AMOUNT",
	RoleCode:             "CODE",
	RoleDocumentNumber:   "DOCUMENT_NUMBER",
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return "UNKNOWN"
}

// =============================================================================
// LABEL DICTIONARY
// =============================================================================

// roleLabels is one row of the label dictionary.
type roleLabels struct {
	Role Role

	// Variants are accepted spellings, already normalized.
	Variants []string

	// Fallback is the 1-based column in the standard layout, 0 for none.
	Fallback int
}

// labelDictionary lists every role with the spellings seen in exports.
// Order matters: earlier roles win ties.
var labelDictionary = []roleLabels{
	{RoleSupplierLine, []string{"LANCAMENTO", "LANCAMENTOS", "FORNECEDOR", "FORNECEDOR/CODIGO", "CREDOR", "FAVORECIDO"}, 1},
	{RoleCategory, []string{"RUBRICA", "CATEGORIA", "NATUREZA", "CLASSIFICACAO"}, 2},
	{RoleDocumentTypeLine, []string{"TIPO DOC", "TIPO DOCUMENTO", "TIPO DE DOCUMENTO", "TIPO DOC/NUMERO", "TIPO"}, 3},
	{RolePeriod, []string{"COMPETENCIA", "PERIODO", "MES REFERENCIA", "MES/ANO", "REFERENCIA"}, 4},
	{RolePaymentDate, []string{"DATA PAGAMENTO", "DATA DE PAGAMENTO", "DT PAGAMENTO", "DT PAGTO", "PAGAMENTO"}, 5},
	{RoleStatus, []string{"SITUACAO", "STATUS", "SIT"}, 6},
	{RoleAmount, []string{"VALOR", "VALOR (R$)", "VALOR R$", "VALOR PAGO", "VALOR LIQUIDO", "MONTANTE"}, 7},
	{RoleCode, []string{"CODIGO", "COD"}, 0},
	{RoleDocumentNumber, []string{"DOCUMENTO", "NUMERO DOCUMENTO", "NUM DOC", "N DOC"}, 0},
}

const (
	// minFuzzyLength keeps short labels out of near-miss matching.
	minFuzzyLength = 5

	// fuzzyCandidates is how many ranked spellings are checked per label.
	fuzzyCandidates = 5

	// maxFuzzyEdits is the largest edit distance accepted as the same word.
	maxFuzzyEdits = 2
)

// =============================================================================
// COLUMN MAP
// =============================================================================

// MatchKind records how a role was resolved.
type MatchKind int

const (
	MatchExact MatchKind = iota
	MatchContains
	MatchFuzzy
	MatchFallback
)

// ColumnMap resolves roles to 1-based columns of one grid. Immutable.
type ColumnMap struct {
	columns map[Role]int
	how     map[Role]MatchKind
}

// Index returns the column for role, or false when the role is absent.
func (m *ColumnMap) Index(role Role) (int, bool) {
	col, ok := m.columns[role]
	return col, ok
}

// Match returns how role was resolved. False when absent.
func (m *ColumnMap) Match(role Role) (MatchKind, bool) {
	how, ok := m.how[role]
	return how, ok
}

// Fallbacks lists roles resolved by position, in dictionary order.
func (m *ColumnMap) Fallbacks() []Role {
	var out []Role
	for _, entry := range labelDictionary {
		if m.how[entry.Role] == MatchFallback {
			if _, ok := m.columns[entry.Role]; ok {
				out = append(out, entry.Role)
			}
		}
	}
	return out
}

// BuildColumnMap matches the labels of headerRow against the dictionary.
//
// Matching runs in passes so a precise match is never displaced by a looser
// one: exact spelling, then a spelling contained as whole words, then a near
// miss. Roles still missing take their standard position unless another role
// explicitly claimed that column.
func BuildColumnMap(grid *types.Grid, headerRow int) *ColumnMap {
	numCols := grid.NumCols()
	m := &ColumnMap{columns: make(map[Role]int), how: make(map[Role]MatchKind)}

	labels := make([]string, numCols+1)
	for col := 1; col <= numCols; col++ {
		labels[col] = normalizeLabel(grid.Cell(headerRow, col).String())
	}
	claimed := make(map[int]Role)

	assign := func(role Role, col int, how MatchKind) {
		m.columns[role] = col
		m.how[role] = how
		claimed[col] = role
	}
	unmapped := func(role Role) bool {
		_, ok := m.columns[role]
		return !ok
	}

	// Pass 1: exact spelling.
	for col := 1; col <= numCols; col++ {
		if labels[col] == "" {
			continue
		}
		for _, entry := range labelDictionary {
			if unmapped(entry.Role) && containsString(entry.Variants, labels[col]) {
				assign(entry.Role, col, MatchExact)
				break
			}
		}
	}

	// Pass 2: longest spelling contained as whole words.
	for col := 1; col <= numCols; col++ {
		if _, taken := claimed[col]; taken || labels[col] == "" {
			continue
		}
		padded := " " + wordsOnly(labels[col]) + " "
		bestRole, bestLen := Role(-1), 0
		for _, entry := range labelDictionary {
			if !unmapped(entry.Role) {
				continue
			}
			for _, v := range entry.Variants {
				w := wordsOnly(v)
				if len(w) > bestLen && strings.Contains(padded, " "+w+" ") {
					bestRole, bestLen = entry.Role, len(w)
				}
			}
		}
		if bestLen > 0 {
			assign(bestRole, col, MatchContains)
		}
	}

	// Pass 3: near misses such as typos or plurals.
	for col := 1; col <= numCols; col++ {
		if _, taken := claimed[col]; taken || len(labels[col]) < minFuzzyLength {
			continue
		}
		if role, ok := fuzzyRole(labels[col], unmapped); ok {
			assign(role, col, MatchFuzzy)
		}
	}

	// Pass 4: standard positions.
	for _, entry := range labelDictionary {
		if entry.Fallback == 0 || !unmapped(entry.Role) || entry.Fallback > numCols {
			continue
		}
		if _, taken := claimed[entry.Fallback]; taken {
			continue
		}
		m.columns[entry.Role] = entry.Fallback
		m.how[entry.Role] = MatchFallback
	}

	return m
}

// fuzzyRole finds the closest spelling among unmapped roles and accepts it
// only when it is plausibly the same word.
func fuzzyRole(label string, unmapped func(Role) bool) (Role, bool) {
	byVariant := make(map[string]Role)
	var candidates []string
	for _, entry := range labelDictionary {
		if !unmapped(entry.Role) {
			continue
		}
		for _, v := range entry.Variants {
			if len(v) < minFuzzyLength {
				continue
			}
			// closestmatch indexes lowercase text.
			key := strings.ToLower(v)
			byVariant[key] = entry.Role
			candidates = append(candidates, key)
		}
	}
	if len(candidates) == 0 {
		return 0, false
	}

	cm := closestmatch.New(candidates, []int{2, 3})
	query := strings.ToLower(label)
	for _, match := range cm.ClosestN(query, fuzzyCandidates) {
		role, ok := byVariant[match]
		if ok && editDistance(query, match) <= maxFuzzyEdits {
			return role, true
		}
	}
	return 0, false
}

// =============================================================================
// HELPERS
// =============================================================================

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// wordsOnly replaces punctuation with spaces and collapses runs.
func wordsOnly(s string) string {
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, s)
	return strings.Join(strings.Fields(mapped), " ")
}

// editDistance is the Levenshtein distance over runes.
func editDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}
