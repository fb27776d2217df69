package parser

import "strings"

// CategoryRule matches a label containing at least one of Any and none of None.
type CategoryRule struct {
	Any      []string
	None     []string
	Category string
}

func (r CategoryRule) matches(label string) bool {
	return containsAny(label, r.Any) && !containsAny(label, r.None)
}

// Classifier maps an operation label to a category. Rules are tried in
// order and the first match wins, even when its category is empty.
type Classifier struct {
	Rules   []CategoryRule
	Default string
}

// Classify is case- and accent-insensitive.
func (c Classifier) Classify(label string) string {
	label = upperFold(label)
	for _, r := range c.Rules {
		if r.matches(label) {
			return r.Category
		}
	}
	return c.Default
}

// sgCategoryRules reproduces the bank's "libellé interbancaire" column.
// REMISE CHEQUE must precede the bare CHEQUE rule.
var sgCategoryRules = []CategoryRule{
	{Any: []string{"FACTURATION", "FRAIS"}, Category: "COMMISSIONS ET FRAIS DIVERS"},
	{Any: []string{"REMISE CHEQUE"}, Category: "REMISES DE CHEQUES"},
	{Any: []string{"CHEQUE"}, None: []string{"REMISE"}, Category: "CHEQUES PAYES"},
	{Any: []string{"VRST GAB"}, Category: "VERSEMENTS ESPECES"},
	{Any: []string{"ECHEANCE PRET"}, Category: "ECHEANCE CREDITS"},
	{Any: []string{"VIR RECU"}, Category: "AUTRES VIREMENTS RECUS"},
	{Any: []string{"VIR INST RE"}, Category: ""},
	{Any: []string{"VIR EUROPEEN EMIS", "EMIS"}, Category: "AUTRES VIREMENTS EMIS"},
}

// sgCreditKeywords mark operations that move money into the account.
var sgCreditKeywords = []string{"VIR INST RE", "VIR RECU", "REMISE", "DEPOT", "VRST GAB"}

var frenchCategoryRules = []CategoryRule{
	{Any: []string{"FRAIS", "COMMISSION", "COTISATION", "FACTURATION"}, Category: "COMMISSIONS ET FRAIS DIVERS"},
	{Any: []string{"REMISE CHEQUE", "REMISE CHQ"}, Category: "REMISES DE CHEQUES"},
	{Any: []string{"CHEQUE", "CHQ"}, None: []string{"REMISE"}, Category: "CHEQUES PAYES"},
	{Any: []string{"PAIEMENT CB", "CARTE", "CB "}, Category: "PAIEMENT CB"},
	{Any: []string{"PRLV", "PRELEVEMENT"}, Category: "PRELEVEMENTS"},
	{Any: []string{"RETRAIT", "DAB"}, Category: "RETRAITS ESPECES"},
	{Any: []string{"VIR RECU", "VIREMENT RECU", "VIR DE"}, Category: "AUTRES VIREMENTS RECUS"},
	{Any: []string{"VIR ", "VIREMENT"}, Category: "AUTRES VIREMENTS EMIS"},
}

var frenchCreditKeywords = []string{
	"VIR RECU", "VIREMENT RECU", "VIR DE", "REMISE", "DEPOT", "VERSEMENT",
	"AVOIR", "REMBOURSEMENT", "VRST",
}

var genericCategoryRules = []CategoryRule{
	{Any: []string{"OPENING BALANCE", "CLOSING BALANCE", "BALANCE BROUGHT FORWARD"}, Category: "BALANCE"},
	{Any: []string{"FEE", "CHARGE", "INTEREST"}, Category: "FEES AND INTEREST"},
	{Any: []string{"ATM", "WITHDRAWAL", "CASH"}, Category: "CASH"},
	{Any: []string{"CARD PAYMENT", "POS ", "PURCHASE"}, Category: "CARD PAYMENTS"},
	{Any: []string{"DIRECT DEBIT", "STANDING ORDER"}, Category: "DIRECT DEBITS"},
	{Any: []string{"SALARY", "DEPOSIT"}, Category: "DEPOSITS"},
	{Any: []string{"TRANSFER"}, Category: "TRANSFERS"},
}

// isCreditLabel reports whether label names an incoming operation.
func isCreditLabel(label string, keywords []string) bool {
	return containsAny(upperFold(label), keywords)
}

// isChequeLabel reports whether label names a paid cheque (not a deposit).
func isChequeLabel(label string) bool {
	up := upperFold(label)
	return strings.Contains(up, "CHEQUE") && !strings.Contains(up, "REMISE")
}
