package book

import (
	"bytes"
	"compress/gzip"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"
)

// The XML backend reads with encoding/xml, which matches on local element
// names, and writes the namespace-prefixed document by hand since
// encoding/xml cannot emit the prefixed form the application expects.

const tsLayout = "2006-01-02 15:04:05 -0700"

type xmlDocument struct {
	XMLName xml.Name  `xml:"gnc-v2"`
	Books   []xmlBook `xml:"book"`
}

type xmlBook struct {
	ID           string           `xml:"id"`
	Counts       []string         `xml:"count-data"`
	Commodities  []xmlCommodity   `xml:"commodity"`
	Accounts     []xmlAccount     `xml:"account"`
	Transactions []xmlTransaction `xml:"transaction"`
	Extra        []xmlRawElement  `xml:",any"`
}

// xmlRawElement captures a book-level element the model does not
// interpret, verbatim, so it can be written back out unchanged.
type xmlRawElement struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Raw     []byte     `xml:",innerxml"`
}

type xmlCommodity struct {
	Space    string `xml:"space"`
	ID       string `xml:"id"`
	Name     string `xml:"name"`
	Fraction int    `xml:"fraction"`
}

type xmlCommodityRef struct {
	Space string `xml:"space"`
	ID    string `xml:"id"`
}

type xmlSlot struct {
	Key   string `xml:"key"`
	Value string `xml:"value"`
	Raw   []byte `xml:",innerxml"`
}

type xmlAccount struct {
	Name        string          `xml:"name"`
	ID          string          `xml:"id"`
	Type        string          `xml:"type"`
	Commodity   xmlCommodityRef `xml:"commodity"`
	SCU         int             `xml:"commodity-scu"`
	Code        string          `xml:"code"`
	Description string          `xml:"description"`
	Parent      string          `xml:"parent"`
	Slots       []xmlSlot       `xml:"slots>slot"`
}

type xmlTimestamp struct {
	Date string `xml:"date"`
}

type xmlSplit struct {
	ID              string `xml:"id"`
	Memo            string `xml:"memo"`
	Action          string `xml:"action"`
	ReconciledState string `xml:"reconciled-state"`
	Value           string `xml:"value"`
	Quantity        string `xml:"quantity"`
	Account         string `xml:"account"`
}

type xmlTransaction struct {
	ID          string          `xml:"id"`
	Currency    xmlCommodityRef `xml:"currency"`
	Num         string          `xml:"num"`
	DatePosted  xmlTimestamp    `xml:"date-posted"`
	DateEntered xmlTimestamp    `xml:"date-entered"`
	Description string          `xml:"description"`
	Slots       []xmlSlot       `xml:"slots>slot"`
	Splits      []xmlSplit      `xml:"splits>split"`
}

func decodeXML(data []byte) (*Book, error) {
	if bytes.HasPrefix(data, gzipMagic) {
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decompressing: %w", err)
		}
		defer zr.Close()
		data, err = io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("decompressing: %w", err)
		}
	}

	var doc xmlDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing XML: %w", err)
	}
	if len(doc.Books) == 0 {
		return nil, fmt.Errorf("no book element found")
	}
	return buildBook(doc.Books[0])
}

func buildBook(xb xmlBook) (*Book, error) {
	b := &Book{ID: xb.ID}

	for _, xc := range xb.Commodities {
		if xc.Space == "template" {
			continue
		}
		b.Commodities = append(b.Commodities, &Commodity{
			GUID:     NewGUID(),
			Space:    xc.Space,
			ID:       xc.ID,
			Name:     xc.Name,
			Fraction: xc.Fraction,
		})
	}

	// First pass creates the accounts, second pass wires the tree.
	byGUID := make(map[string]*Account, len(xb.Accounts))
	for _, xa := range xb.Accounts {
		a := &Account{
			GUID:        xa.ID,
			Name:        xa.Name,
			Type:        AccountType(xa.Type),
			Commodity:   b.findCommodity(xa.Commodity.Space, xa.Commodity.ID),
			SCU:         xa.SCU,
			Code:        xa.Code,
			Description: xa.Description,
		}
		for _, slot := range xa.Slots {
			switch slot.Key {
			case "placeholder":
				a.Placeholder = slot.Value == "true"
			case "hidden":
				a.Hidden = slot.Value == "true"
			default:
				a.ExtraSlots = append(a.ExtraSlots, string(slot.Raw))
			}
		}
		byGUID[xa.ID] = a
	}
	for _, xa := range xb.Accounts {
		a := byGUID[xa.ID]
		if xa.Parent == "" {
			if a.Type == TypeRoot && b.Root == nil {
				b.Root = a
			}
			continue
		}
		parent, ok := byGUID[xa.Parent]
		if !ok {
			return nil, fmt.Errorf("account %s references unknown parent %s", xa.ID, xa.Parent)
		}
		a.Parent = parent
		parent.Children = append(parent.Children, a)
	}
	if b.Root == nil {
		return nil, fmt.Errorf("no root account found")
	}

	for _, xt := range xb.Transactions {
		t := &Transaction{
			GUID:        xt.ID,
			Currency:    b.findCommodity(xt.Currency.Space, xt.Currency.ID),
			Num:         xt.Num,
			Description: xt.Description,
		}
		for _, slot := range xt.Slots {
			t.ExtraSlots = append(t.ExtraSlots, string(slot.Raw))
		}
		var err error
		if t.DatePosted, err = parseTimestamp(xt.DatePosted.Date); err != nil {
			return nil, fmt.Errorf("transaction %s: %w", xt.ID, err)
		}
		if t.DateEntered, err = parseTimestamp(xt.DateEntered.Date); err != nil {
			return nil, fmt.Errorf("transaction %s: %w", xt.ID, err)
		}
		for _, xs := range xt.Splits {
			account, ok := byGUID[xs.Account]
			if !ok {
				return nil, fmt.Errorf("split %s references unknown account %s", xs.ID, xs.Account)
			}
			value, err := parseNumeric(xs.Value)
			if err != nil {
				return nil, fmt.Errorf("split %s: %w", xs.ID, err)
			}
			quantity, err := parseNumeric(xs.Quantity)
			if err != nil {
				return nil, fmt.Errorf("split %s: %w", xs.ID, err)
			}
			t.Splits = append(t.Splits, &Split{
				GUID:           xs.ID,
				Account:        account,
				Memo:           xs.Memo,
				Action:         xs.Action,
				ReconcileState: xs.ReconciledState,
				Value:          value,
				Quantity:       quantity,
			})
		}
		b.Transactions = append(b.Transactions, t)
	}

	for _, x := range xb.Extra {
		b.Extra = append(b.Extra, rawElement(x))
	}

	return b, nil
}

const nsBase = "http://www.gnucash.org/XML/"

func prefixedName(n xml.Name) string {
	if strings.HasPrefix(n.Space, nsBase) {
		return strings.TrimPrefix(n.Space, nsBase) + ":" + n.Local
	}
	return n.Local
}

// rawElement re-renders an uninterpreted element with the standard
// namespace prefixes so it survives the trip through the model.
func rawElement(x xmlRawElement) RawElement {
	name := prefixedName(x.XMLName)
	var sb strings.Builder
	sb.WriteByte('<')
	sb.WriteString(name)
	for _, attr := range x.Attrs {
		sb.WriteByte(' ')
		sb.WriteString(prefixedName(attr.Name))
		sb.WriteString(`="`)
		_ = xml.EscapeText(&sb, []byte(attr.Value))
		sb.WriteByte('"')
	}
	sb.WriteByte('>')
	sb.Write(x.Raw)
	sb.WriteString("</")
	sb.WriteString(name)
	sb.WriteByte('>')
	return RawElement{Name: name, Markup: sb.String()}
}

func (b *Book) findCommodity(space, id string) *Commodity {
	for _, c := range b.Commodities {
		if c.Space == space && c.ID == id {
			return c
		}
	}
	// Fall back to mnemonic-only: old files mix CURRENCY and ISO4217.
	for _, c := range b.Commodities {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(tsLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}

func encodeXML(b *Book, compress bool) ([]byte, error) {
	var buf bytes.Buffer
	w := &xmlWriter{buf: &buf}

	w.line(`<?xml version="1.0" encoding="utf-8" ?>`)
	w.line(`<gnc-v2`)
	for _, ns := range []string{
		"gnc", "act", "book", "cd", "cmdty", "price", "slot", "split", "sx", "trn", "ts",
		"addr", "bgt", "billterm", "bt-days", "bt-prox", "cust", "employee", "entry",
		"fs", "invoice", "job", "lot", "order", "owner", "recurrence", "taxtable",
		"tte", "vendor",
	} {
		w.line(fmt.Sprintf(`     xmlns:%s="%s%s"`, ns, nsBase, ns))
	}
	w.line(`>`)

	// Uninterpreted elements go back where the application writes them:
	// book slots after the id, the pricedb after the commodities, and
	// everything else after the transactions.
	var bookSlots, pricedbs, trailing []RawElement
	for _, e := range b.Extra {
		switch e.Name {
		case "book:slots":
			bookSlots = append(bookSlots, e)
		case "gnc:pricedb":
			pricedbs = append(pricedbs, e)
		default:
			trailing = append(trailing, e)
		}
	}

	w.elem("gnc:count-data", "1", `cd:type="book"`)
	w.line(`<gnc:book version="2.0.0">`)
	w.elem("book:id", b.ID, `type="guid"`)
	for _, e := range bookSlots {
		w.line(e.Markup)
	}

	accounts := b.Accounts()
	w.elem("gnc:count-data", fmt.Sprint(len(b.Commodities)), `cd:type="commodity"`)
	w.elem("gnc:count-data", fmt.Sprint(len(accounts)+1), `cd:type="account"`)
	w.elem("gnc:count-data", fmt.Sprint(len(b.Transactions)), `cd:type="transaction"`)

	for _, c := range b.Commodities {
		w.line(`<gnc:commodity version="2.0.0">`)
		w.elem("cmdty:space", c.Space)
		w.elem("cmdty:id", c.ID)
		if c.Name != "" {
			w.elem("cmdty:name", c.Name)
		}
		w.elem("cmdty:fraction", fmt.Sprint(c.Fraction))
		w.line(`</gnc:commodity>`)
	}
	for _, e := range pricedbs {
		w.line(e.Markup)
	}

	if err := writeAccount(w, b.Root); err != nil {
		return nil, err
	}
	for _, a := range accounts {
		if err := writeAccount(w, a); err != nil {
			return nil, err
		}
	}

	for _, t := range b.Transactions {
		if err := writeTransaction(w, t); err != nil {
			return nil, err
		}
	}
	for _, e := range trailing {
		w.line(e.Markup)
	}

	w.line(`</gnc:book>`)
	w.line(`</gnc-v2>`)

	if !compress {
		return buf.Bytes(), nil
	}

	var zbuf bytes.Buffer
	zw := gzip.NewWriter(&zbuf)
	if _, err := zw.Write(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("compressing: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compressing: %w", err)
	}
	return zbuf.Bytes(), nil
}

func writeAccount(w *xmlWriter, a *Account) error {
	w.line(`<gnc:account version="2.0.0">`)
	w.elem("act:name", a.Name)
	w.elem("act:id", a.GUID, `type="guid"`)
	w.elem("act:type", string(a.Type))
	if a.Commodity != nil {
		w.line(`<act:commodity>`)
		w.elem("cmdty:space", a.Commodity.Space)
		w.elem("cmdty:id", a.Commodity.ID)
		w.line(`</act:commodity>`)
		scu := a.SCU
		if scu == 0 {
			scu = a.Commodity.Fraction
		}
		w.elem("act:commodity-scu", fmt.Sprint(scu))
	}
	if a.Code != "" {
		w.elem("act:code", a.Code)
	}
	if a.Description != "" {
		w.elem("act:description", a.Description)
	}
	if a.Placeholder || a.Hidden || len(a.ExtraSlots) > 0 {
		w.line(`<act:slots>`)
		if a.Placeholder {
			writeSlot(w, "placeholder", "true")
		}
		if a.Hidden {
			writeSlot(w, "hidden", "true")
		}
		writeRawSlots(w, a.ExtraSlots)
		w.line(`</act:slots>`)
	}
	if a.Parent != nil {
		w.elem("act:parent", a.Parent.GUID, `type="guid"`)
	}
	w.line(`</gnc:account>`)
	return nil
}

func writeSlot(w *xmlWriter, key, value string) {
	w.line(`  <slot>`)
	w.elem("slot:key", key)
	w.elem("slot:value", value, `type="string"`)
	w.line(`  </slot>`)
}

func writeRawSlots(w *xmlWriter, slots []string) {
	for _, s := range slots {
		w.line(`  <slot>` + s + `</slot>`)
	}
}

func writeTransaction(w *xmlWriter, t *Transaction) error {
	w.line(`<gnc:transaction version="2.0.0">`)
	w.elem("trn:id", t.GUID, `type="guid"`)
	if t.Currency != nil {
		w.line(`<trn:currency>`)
		w.elem("cmdty:space", t.Currency.Space)
		w.elem("cmdty:id", t.Currency.ID)
		w.line(`</trn:currency>`)
	}
	if t.Num != "" {
		w.elem("trn:num", t.Num)
	}
	writeTimestamp(w, "trn:date-posted", t.DatePosted)
	writeTimestamp(w, "trn:date-entered", t.DateEntered)
	w.elem("trn:description", t.Description)
	if len(t.ExtraSlots) > 0 {
		w.line(`<trn:slots>`)
		writeRawSlots(w, t.ExtraSlots)
		w.line(`</trn:slots>`)
	}
	w.line(`<trn:splits>`)
	for _, s := range t.Splits {
		if err := writeSplit(w, t, s); err != nil {
			return err
		}
	}
	w.line(`</trn:splits>`)
	w.line(`</gnc:transaction>`)
	return nil
}

func writeSplit(w *xmlWriter, t *Transaction, s *Split) error {
	valueDenom := 100
	if t.Currency != nil {
		valueDenom = t.Currency.Fraction
	}
	quantityDenom := s.Account.SmallestFraction()

	value, err := marshalNumeric(s.Value, valueDenom)
	if err != nil {
		return fmt.Errorf("split %s value: %w", s.GUID, err)
	}
	quantity, err := marshalNumeric(s.Quantity, quantityDenom)
	if err != nil {
		return fmt.Errorf("split %s quantity: %w", s.GUID, err)
	}

	w.line(`  <trn:split>`)
	w.elem("split:id", s.GUID, `type="guid"`)
	if s.Memo != "" {
		w.elem("split:memo", s.Memo)
	}
	if s.Action != "" {
		w.elem("split:action", s.Action)
	}
	state := s.ReconcileState
	if state == "" {
		state = "n"
	}
	w.elem("split:reconciled-state", state)
	w.elem("split:value", value)
	w.elem("split:quantity", quantity)
	w.elem("split:account", s.Account.GUID, `type="guid"`)
	w.line(`  </trn:split>`)
	return nil
}

func writeTimestamp(w *xmlWriter, name string, t time.Time) {
	if t.IsZero() {
		return
	}
	w.line("<" + name + ">")
	w.elem("ts:date", t.Format(tsLayout))
	w.line("</" + name + ">")
}

// xmlWriter accumulates the prefixed XML document line by line.
type xmlWriter struct {
	buf *bytes.Buffer
}

func (w *xmlWriter) line(s string) {
	w.buf.WriteString(s)
	w.buf.WriteByte('\n')
}

func (w *xmlWriter) elem(name, text string, attrs ...string) {
	w.buf.WriteByte('<')
	w.buf.WriteString(name)
	for _, attr := range attrs {
		w.buf.WriteByte(' ')
		w.buf.WriteString(attr)
	}
	w.buf.WriteByte('>')
	_ = xml.EscapeText(w.buf, []byte(text))
	w.buf.WriteString("</")
	w.buf.WriteString(name)
	w.buf.WriteByte('>')
	w.buf.WriteByte('\n')
}
