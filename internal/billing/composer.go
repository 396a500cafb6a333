package billing

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ItemField names an editable field of a draft line
type ItemField string

const (
	FieldMedicine ItemField = "medicine"
	FieldQuantity ItemField = "quantity"
	FieldPrice    ItemField = "price"
)

// ItemDraft is a line being composed. Quantity and Price hold the text as typed.
type ItemDraft struct {
	MedicineID int
	Quantity   string
	Price      string
}

// Draft is an invoice under construction. CustomerID 0 means none selected.
type Draft struct {
	CustomerID int
	Items      []ItemDraft
}

// LineTotal is quantity times price. Input that is not a number gives ErrNotNumeric.
func LineTotal(item ItemDraft) (decimal.Decimal, error) {
	q, err := parseNumber(item.Quantity)
	if err != nil {
		return decimal.Zero, err
	}
	p, err := parseNumber(item.Price)
	if err != nil {
		return decimal.Zero, err
	}
	return q.Mul(p), nil
}

// GrandTotal sums the line totals; an empty draft totals zero.
func (d Draft) GrandTotal() (decimal.Decimal, error) {
	total := decimal.Zero
	for _, item := range d.Items {
		line, err := LineTotal(item)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(line)
	}
	return total, nil
}

// CatalogSource lists what a draft can refer to.
type CatalogSource interface {
	ListMedicines(ctx context.Context, search string) ([]Medicine, error)
	ListCustomers(ctx context.Context, search string) ([]Customer, error)
}

// InvoiceCreator stores a finished invoice.
type InvoiceCreator interface {
	CreateInvoice(ctx context.Context, req InvoiceRequest) (*Invoice, error)
}

// CatalogResult carries the customers and medicines offered by the composer.
type CatalogResult struct {
	Customers []Customer
	Medicines []Medicine
	Err       error
}

// SubmitResult is the outcome of an invoice creation and the catalog refresh after it.
type SubmitResult struct {
	Invoice   *Invoice
	Err       error
	Medicines []Medicine
	FetchErr  error
}

// Composer builds an invoice draft against the current catalog.
type Composer struct {
	statusBoard

	source  CatalogSource
	creator InvoiceCreator

	Draft      Draft
	Customers  []Customer
	Medicines  []Medicine
	Loading    bool
	Submitting bool
}

// NewComposer creates a composer with an empty draft.
func NewComposer(source CatalogSource, creator InvoiceCreator) *Composer {
	return &Composer{source: source, creator: creator}
}

// LoadCatalog fetches customers and medicines.
func (c *Composer) LoadCatalog(ctx context.Context) CatalogResult {
	var res CatalogResult
	res.Customers, res.Err = c.source.ListCustomers(ctx, "")
	if res.Err != nil {
		return res
	}
	res.Medicines, res.Err = c.source.ListMedicines(ctx, "")
	return res
}

// ApplyCatalog installs a LoadCatalog result.
func (c *Composer) ApplyCatalog(res CatalogResult) {
	c.Loading = false
	if res.Err != nil {
		c.setStatus(StatusError, "Failed to load customers and medicines")
		return
	}
	c.Customers = res.Customers
	c.Medicines = res.Medicines
}

// Load fetches the catalog and installs it.
func (c *Composer) Load(ctx context.Context) error {
	c.Loading = true
	res := c.LoadCatalog(ctx)
	c.ApplyCatalog(res)
	return res.Err
}

// Reset discards the draft.
func (c *Composer) Reset() {
	c.Draft = Draft{}
}

// SelectCustomer sets the customer the invoice is billed to.
func (c *Composer) SelectCustomer(id int) {
	c.Draft.CustomerID = id
}

// AddItem appends a blank line and returns its index.
func (c *Composer) AddItem() int {
	c.Draft.Items = append(c.Draft.Items, ItemDraft{Quantity: "1", Price: "0"})
	return len(c.Draft.Items) - 1
}

// RemoveItem deletes the line at index i; out of range indexes are ignored.
func (c *Composer) RemoveItem(i int) {
	if i < 0 || i >= len(c.Draft.Items) {
		return
	}
	c.Draft.Items = append(c.Draft.Items[:i:i], c.Draft.Items[i+1:]...)
}

// UpdateItem sets one field of line i. Choosing a different medicine copies its
// catalog price into the line; the price stays editable afterwards.
func (c *Composer) UpdateItem(i int, field ItemField, value string) {
	if i < 0 || i >= len(c.Draft.Items) {
		return
	}
	item := &c.Draft.Items[i]
	switch field {
	case FieldMedicine:
		id, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || id < 0 {
			id = 0
		}
		if id == item.MedicineID {
			return
		}
		item.MedicineID = id
		if m, ok := c.Medicine(id); ok {
			item.Price = m.Price.StringFixed(2)
		}
	case FieldQuantity:
		item.Quantity = value
	case FieldPrice:
		item.Price = value
	}
}

// Medicine looks a medicine up in the loaded catalog.
func (c *Composer) Medicine(id int) (Medicine, bool) {
	for _, m := range c.Medicines {
		if m.ID == id {
			return m, true
		}
	}
	return Medicine{}, false
}

// Customer looks a customer up in the loaded list.
func (c *Composer) Customer(id int) (Customer, bool) {
	for _, cu := range c.Customers {
		if cu.ID == id {
			return cu, true
		}
	}
	return Customer{}, false
}

// GrandTotal is the total of the current draft.
func (c *Composer) GrandTotal() (decimal.Decimal, error) {
	return c.Draft.GrandTotal()
}

// PrepareSubmit validates the draft and converts it to a request body. The customer
// is checked before the items.
func (c *Composer) PrepareSubmit() (InvoiceRequest, error) {
	if c.Draft.CustomerID == 0 {
		c.setStatus(StatusError, MessageFor(ErrNoCustomer, ""))
		return InvoiceRequest{}, ErrNoCustomer
	}
	if len(c.Draft.Items) == 0 {
		c.setStatus(StatusError, MessageFor(ErrNoItems, ""))
		return InvoiceRequest{}, ErrNoItems
	}

	req := InvoiceRequest{Customer: c.Draft.CustomerID, Items: make([]InvoiceLineInput, 0, len(c.Draft.Items))}
	for n, item := range c.Draft.Items {
		qty, errQ := parseNumber(item.Quantity)
		price, errP := parseNumber(item.Price)
		if errQ != nil || errP != nil {
			err := &ValidationError{Message: fmt.Sprintf("Item %d: quantity and price must be numbers", n+1)}
			c.setStatus(StatusError, err.Message)
			return InvoiceRequest{}, err
		}

		line := InvoiceLineInput{Quantity: int(qty.IntPart()), Price: price}
		if item.MedicineID > 0 {
			id := item.MedicineID
			line.Medicine = &id
		}
		req.Items = append(req.Items, line)
	}

	c.Submitting = true
	c.Status = Status{}
	return req, nil
}

// ExecuteSubmit posts req and, once stored, re-reads the medicine catalog since
// the backend has taken the sold quantities out of stock.
func (c *Composer) ExecuteSubmit(ctx context.Context, req InvoiceRequest) SubmitResult {
	var res SubmitResult
	res.Invoice, res.Err = c.creator.CreateInvoice(ctx, req)
	if res.Err != nil {
		return res
	}
	res.Medicines, res.FetchErr = c.source.ListMedicines(ctx, "")
	return res
}

// ApplySubmit folds a submission outcome into the state. A rejected draft is kept
// as it was so it can be corrected.
func (c *Composer) ApplySubmit(res SubmitResult) {
	c.Submitting = false
	if res.Err != nil {
		c.setStatus(StatusError, MessageFor(res.Err, "Failed to create invoice"))
		return
	}
	c.Draft = Draft{}
	if res.FetchErr == nil {
		c.Medicines = res.Medicines
	}
	c.setStatus(StatusSuccess, "Invoice created successfully!")
}

// Submit validates and stores the draft.
func (c *Composer) Submit(ctx context.Context) (*Invoice, error) {
	req, err := c.PrepareSubmit()
	if err != nil {
		return nil, err
	}
	res := c.ExecuteSubmit(ctx, req)
	c.ApplySubmit(res)
	return res.Invoice, res.Err
}
