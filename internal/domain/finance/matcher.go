package finance

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/crechebooks/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ConfidenceLevel is the coarse bucket of a match score
type ConfidenceLevel string

const (
	ConfidenceExact   ConfidenceLevel = "EXACT"
	ConfidenceHigh    ConfidenceLevel = "HIGH"
	ConfidenceMedium  ConfidenceLevel = "MEDIUM"
	ConfidenceLow     ConfidenceLevel = "LOW"
	ConfidenceNoMatch ConfidenceLevel = "NO_MATCH"
)

// ConfidenceLevelForScore maps a 0-100 score to its level
func ConfidenceLevelForScore(score int) ConfidenceLevel {
	switch {
	case score >= ScoreExactReference:
		return ConfidenceExact
	case score >= MinAutoApplyThreshold:
		return ConfidenceHigh
	case score >= 50:
		return ConfidenceMedium
	case score > 0:
		return ConfidenceLow
	default:
		return ConfidenceNoMatch
	}
}

// Signal weights
const (
	ScoreExactReference     = 100
	ScoreNameAndExactAmount = 90
	ScoreNameAndTolerance   = 65
	ScoreExactAmount        = 60
	ScoreNameOnly           = 40
	ScoreAmountTolerance    = 35
	ScoreDateProximityBoost = 5

	// MinAutoApplyThreshold is the lowest score that may ever be applied without review
	MinAutoApplyThreshold = 80
)

// MatchDecision is what should happen to a scored transaction
type MatchDecision string

const (
	DecisionAutoApply MatchDecision = "AUTO_APPLY"
	DecisionReview    MatchDecision = "REVIEW_REQUIRED"
	DecisionNoMatch   MatchDecision = "NO_MATCH"
)

// MatcherConfig tunes the matcher
type MatcherConfig struct {
	AutoApplyThreshold int
	AmountTolerancePct decimal.Decimal
	DateProximityDays  int
	MaxSuggestions     int
}

// DefaultMatcherConfig returns the production defaults
func DefaultMatcherConfig() MatcherConfig {
	return MatcherConfig{
		AutoApplyThreshold: MinAutoApplyThreshold,
		AmountTolerancePct: decimal.NewFromInt(5),
		DateProximityDays:  7,
		MaxSuggestions:     5,
	}
}

// MatchCandidate is one scored invoice suggestion for a transaction
type MatchCandidate struct {
	TransactionID    uuid.UUID       `json:"transaction_id"`
	InvoiceID        uuid.UUID       `json:"invoice_id"`
	InvoiceNumber    string          `json:"invoice_number"`
	ParentID         uuid.UUID       `json:"parent_id"`
	DueDate          time.Time       `json:"due_date"`
	OutstandingCents int64           `json:"outstanding_cents"`
	ConfidenceScore  int             `json:"confidence_score"`
	ConfidenceLevel  ConfidenceLevel `json:"confidence_level"`
	MatchReasons     []string        `json:"match_reasons"`
}

// InvoiceCandidate is an open invoice together with the parent name used for payee matching
type InvoiceCandidate struct {
	Invoice         Invoice
	ParentFirstName string
	ParentLastName  string
}

// TransactionMatch is the decision for one transaction
type TransactionMatch struct {
	Transaction   Transaction      `json:"transaction"`
	Decision      MatchDecision    `json:"decision"`
	Candidates    []MatchCandidate `json:"candidates"`
	AllocateCents int64            `json:"allocate_cents,omitempty"`
	Note          string           `json:"note,omitempty"`
}

// Best returns the top ranked candidate, if any
func (m TransactionMatch) Best() (MatchCandidate, bool) {
	if len(m.Candidates) == 0 {
		return MatchCandidate{}, false
	}
	return m.Candidates[0], true
}

// SkippedTransaction is a transaction filtered out before scoring
type SkippedTransaction struct {
	Transaction Transaction `json:"transaction"`
	Reason      string      `json:"reason"`
}

// MatchResult groups the outcome of one matching pass
type MatchResult struct {
	AutoMatched    []TransactionMatch   `json:"auto_matched"`
	ReviewRequired []TransactionMatch   `json:"review_required"`
	NoMatch        []TransactionMatch   `json:"no_match"`
	Skipped        []SkippedTransaction `json:"skipped"`
}

// Matcher scores bank credits against open invoices. It has no side effects.
type Matcher struct {
	config MatcherConfig
}

// NewMatcher creates a matcher. The auto-apply threshold is never allowed below MinAutoApplyThreshold.
func NewMatcher(config MatcherConfig) *Matcher {
	if config.AutoApplyThreshold < MinAutoApplyThreshold || config.AutoApplyThreshold > ScoreExactReference {
		config.AutoApplyThreshold = MinAutoApplyThreshold
	}
	if config.AmountTolerancePct.IsNegative() {
		config.AmountTolerancePct = decimal.Zero
	}
	if config.MaxSuggestions <= 0 {
		config.MaxSuggestions = DefaultMatcherConfig().MaxSuggestions
	}
	if config.DateProximityDays < 0 {
		config.DateProximityDays = 0
	}
	return &Matcher{config: config}
}

// Config returns the effective configuration
func (m *Matcher) Config() MatcherConfig {
	return m.config
}

// Match runs one pass over the transactions. Transactions are processed oldest first;
// an invoice settled by an earlier auto-match in the same pass is not auto-applied again.
func (m *Matcher) Match(transactions []Transaction, invoices []InvoiceCandidate) MatchResult {
	result := MatchResult{
		AutoMatched:    []TransactionMatch{},
		ReviewRequired: []TransactionMatch{},
		NoMatch:        []TransactionMatch{},
		Skipped:        []SkippedTransaction{},
	}

	ordered := make([]Transaction, len(transactions))
	copy(ordered, transactions)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].Date.Equal(ordered[j].Date) {
			return ordered[i].Date.Before(ordered[j].Date)
		}
		return ordered[i].ID.String() < ordered[j].ID.String()
	})

	remaining := make(map[uuid.UUID]int64, len(invoices))
	for i := range invoices {
		remaining[invoices[i].Invoice.ID] = invoices[i].Invoice.OutstandingCents()
	}

	for _, tx := range ordered {
		if reason, skip := skipReason(&tx); skip {
			result.Skipped = append(result.Skipped, SkippedTransaction{Transaction: tx, Reason: reason})
			continue
		}

		candidates := m.Score(tx, invoices)
		match := TransactionMatch{Transaction: tx, Candidates: candidates}
		best, ok := match.Best()
		switch {
		case !ok:
			match.Decision = DecisionNoMatch
			result.NoMatch = append(result.NoMatch, match)
		case best.ConfidenceScore >= m.config.AutoApplyThreshold && remaining[best.InvoiceID] > 0:
			amount := min(tx.RemainingCents(), remaining[best.InvoiceID])
			remaining[best.InvoiceID] -= amount
			match.Decision = DecisionAutoApply
			match.AllocateCents = amount
			result.AutoMatched = append(result.AutoMatched, match)
		default:
			match.Decision = DecisionReview
			if best.ConfidenceScore >= m.config.AutoApplyThreshold {
				match.Note = fmt.Sprintf("invoice %s was settled earlier in this pass", best.InvoiceNumber)
			}
			result.ReviewRequired = append(result.ReviewRequired, match)
		}
	}
	return result
}

// Score ranks every eligible invoice for a single transaction, best first,
// truncated to the configured number of suggestions.
func (m *Matcher) Score(tx Transaction, invoices []InvoiceCandidate) []MatchCandidate {
	payeeTokens := tokenize(tx.PayeeName + " " + tx.Description)
	refTokens := tokenize(tx.Reference + " " + tx.Description)
	amount := valueobject.NewMoneyFromCents(tx.RemainingCents())

	candidates := make([]MatchCandidate, 0)
	for i := range invoices {
		inv := &invoices[i].Invoice
		if inv.TenantID != tx.TenantID || !inv.IsOpen() {
			continue
		}
		score, reasons := m.scoreOne(tx, amount, payeeTokens, refTokens, &invoices[i])
		if score <= 0 {
			continue
		}
		candidates = append(candidates, MatchCandidate{
			TransactionID:    tx.ID,
			InvoiceID:        inv.ID,
			InvoiceNumber:    inv.InvoiceNumber,
			ParentID:         inv.ParentID,
			DueDate:          inv.DueDate,
			OutstandingCents: inv.OutstandingCents(),
			ConfidenceScore:  score,
			ConfidenceLevel:  ConfidenceLevelForScore(score),
			MatchReasons:     reasons,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.ConfidenceScore != b.ConfidenceScore {
			return a.ConfidenceScore > b.ConfidenceScore
		}
		if !a.DueDate.Equal(b.DueDate) {
			return a.DueDate.Before(b.DueDate)
		}
		return a.InvoiceID.String() < b.InvoiceID.String()
	})

	if len(candidates) > m.config.MaxSuggestions {
		candidates = candidates[:m.config.MaxSuggestions]
	}
	return candidates
}

func (m *Matcher) scoreOne(tx Transaction, amount valueobject.Money, payeeTokens, refTokens []string, c *InvoiceCandidate) (int, []string) {
	inv := &c.Invoice

	if referenceMatches(inv.InvoiceNumber, refTokens) {
		return ScoreExactReference, []string{fmt.Sprintf("invoice number %s found in reference", inv.InvoiceNumber)}
	}

	outstanding := valueobject.NewMoneyFromCents(inv.OutstandingCents())
	exactAmount := amount.Equals(outstanding)
	withinTolerance := !exactAmount && amount.WithinTolerance(outstanding, m.config.AmountTolerancePct)
	nameReason, nameMatch := nameMatches(c.ParentFirstName, c.ParentLastName, payeeTokens)

	var score int
	reasons := make([]string, 0, 3)
	switch {
	case nameMatch && exactAmount:
		return ScoreNameAndExactAmount, []string{nameReason, "amount equals outstanding balance"}
	case nameMatch && withinTolerance:
		score = ScoreNameAndTolerance
		reasons = append(reasons, nameReason, "amount within tolerance of outstanding balance")
	case exactAmount:
		score = ScoreExactAmount
		reasons = append(reasons, "amount equals outstanding balance")
	case nameMatch:
		score = ScoreNameOnly
		reasons = append(reasons, nameReason)
	case withinTolerance:
		score = ScoreAmountTolerance
		reasons = append(reasons, "amount within tolerance of outstanding balance")
	default:
		return 0, nil
	}

	if m.nearBillingDates(tx.Date, inv) {
		score += ScoreDateProximityBoost
		reasons = append(reasons, "payment date close to billing period")
	}
	// Only a reference or a name with the exact amount may reach auto-apply.
	if score >= MinAutoApplyThreshold {
		score = MinAutoApplyThreshold - 1
	}
	return score, reasons
}

func (m *Matcher) nearBillingDates(date time.Time, inv *Invoice) bool {
	if !inv.BillingPeriodStart.IsZero() && !date.Before(inv.BillingPeriodStart) && !date.After(inv.BillingPeriodEnd) {
		return true
	}
	if inv.DueDate.IsZero() {
		return false
	}
	days := WholeDaysBetween(inv.DueDate, date)
	if days < 0 {
		days = -days
	}
	return days <= m.config.DateProximityDays
}

func skipReason(tx *Transaction) (string, bool) {
	switch {
	case tx.IsDeleted():
		return "deleted", true
	case !tx.IsCredit:
		return "debit transaction", true
	case tx.IsReconciled:
		return "already reconciled", true
	case tx.IsFullyAllocated():
		return "already fully allocated", true
	}
	return "", false
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToUpper(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '\''
	})
}

func compact(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToUpper(r)
		}
		return -1
	}, s)
}

func referenceMatches(invoiceNumber string, tokens []string) bool {
	number := strings.ToUpper(strings.TrimSpace(invoiceNumber))
	if number == "" {
		return false
	}
	compactNumber := compact(number)
	for _, tok := range tokens {
		if tok == number {
			return true
		}
		if len(compactNumber) >= 4 && compact(tok) == compactNumber {
			return true
		}
	}
	return false
}

func nameMatches(firstName, lastName string, tokens []string) (string, bool) {
	last := tokenize(lastName)
	if len(last) == 0 || (len(last) == 1 && len([]rune(last[0])) < 2) {
		return "", false
	}
	set := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		set[tok] = struct{}{}
	}
	for _, part := range last {
		if _, ok := set[part]; !ok {
			return "", false
		}
	}
	for _, part := range tokenize(firstName) {
		if _, ok := set[part]; ok {
			return "payee name matches parent full name", true
		}
	}
	return "payee name matches parent surname", true
}
