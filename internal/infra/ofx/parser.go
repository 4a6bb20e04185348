// Package ofx imports bank and credit card statements in OFX/QFX format.
package ofx

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/boddenberg/pocketadvisor-bfa-go/internal/domain"
	"github.com/boddenberg/pocketadvisor-bfa-go/internal/infra/records"

	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"
)

var (
	severityRe = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	openTagRe  = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
)

// Statement is the result of one import.
type Statement struct {
	Accounts     []string             `json:"accounts"`
	Transactions []domain.Transaction `json:"transactions"`
}

// preprocess repairs formatting quirks some banks emit.
func preprocess(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")
	content = severityRe.ReplaceAllStringFunc(content, strings.ToUpper)
	return openTagRe.ReplaceAllString(content, "$1>")
}

// Parse reads an OFX document and returns its transactions with signed
// amounts (debits negative), oldest statement order preserved.
func Parse(r io.Reader) (*Statement, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading OFX: %w", err)
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(preprocess(string(content))))
	if err != nil {
		return nil, fmt.Errorf("parsing OFX: %w", err)
	}

	out := &Statement{Accounts: []string{}, Transactions: []domain.Transaction{}}

	for _, msg := range resp.Bank {
		stmt, ok := msg.(*ofxgo.StatementResponse)
		if !ok {
			continue
		}
		out.Accounts = append(out.Accounts, string(stmt.BankAcctFrom.AcctID))
		if stmt.BankTranList == nil {
			continue
		}
		if err := out.add(stmt.BankTranList.Transactions); err != nil {
			return nil, err
		}
	}

	for _, msg := range resp.CreditCard {
		stmt, ok := msg.(*ofxgo.CCStatementResponse)
		if !ok {
			continue
		}
		out.Accounts = append(out.Accounts, string(stmt.CCAcctFrom.AcctID))
		if stmt.BankTranList == nil {
			continue
		}
		if err := out.add(stmt.BankTranList.Transactions); err != nil {
			return nil, err
		}
	}

	return out, nil
}

func (s *Statement) add(txns []ofxgo.Transaction) error {
	for _, t := range txns {
		tx, err := convert(t)
		if err != nil {
			return err
		}
		s.Transactions = append(s.Transactions, tx)
	}
	return nil
}

func convert(t ofxgo.Transaction) (domain.Transaction, error) {
	amount, err := decimal.NewFromString(t.TrnAmt.FloatString(2))
	if err != nil {
		return domain.Transaction{}, &domain.ErrInvalidInput{Field: "TRNAMT", Reason: err.Error()}
	}
	return domain.Transaction{
		ID:        string(t.FiTID),
		Amount:    amount,
		Category:  category(t.TrnType.String()),
		Merchant:  merchant(t),
		Timestamp: t.DtPosted.Time.UTC(),
	}, nil
}

// category infers what little OFX tells us; everything else is uncategorized.
func category(trnType string) string {
	switch trnType {
	case "INT", "DIV":
		return "interest"
	case "FEE", "SRVCHG":
		return "fees"
	case "ATM", "CASH":
		return "cash"
	}
	return records.DefaultCategory
}

var genericNames = map[string]bool{
	"DEBIT":           true,
	"CREDIT":          true,
	"PURCHASE":        true,
	"PAYMENT":         true,
	"POS TRANSACTION": true,
	"CARD PURCHASE":   true,
}

var merchantPrefixes = []string{
	"POS PURCHASE ",
	"PURCHASE AUTHORIZED ON ",
	"DEBIT CARD PURCHASE ",
	"ACH DEBIT ",
	"CHECK CARD ",
	"VISA PURCHASE ",
	"DEBIT PURCHASE ",
}

func merchant(t ofxgo.Transaction) string {
	if t.Payee != nil && t.Payee.Name != "" {
		return strings.TrimSpace(string(t.Payee.Name))
	}

	name := strings.TrimSpace(string(t.Name))
	if t.Memo != "" && genericNames[strings.ToUpper(name)] {
		name = strings.TrimSpace(string(t.Memo))
	}

	upper := strings.ToUpper(name)
	for _, p := range merchantPrefixes {
		if strings.HasPrefix(upper, p) {
			name = name[len(p):]
			break
		}
	}
	return name
}
