package billing

import (
	"context"
	"fmt"
)

// InvoiceStore is the backend surface the invoice browser needs.
type InvoiceStore interface {
	ListInvoices(ctx context.Context, customerID int) ([]Invoice, error)
	GetInvoice(ctx context.Context, id int) (*Invoice, error)
	DeleteInvoice(ctx context.Context, id int) error
	InvoicePDF(ctx context.Context, id int) ([]byte, error)
	ListCustomers(ctx context.Context, search string) ([]Customer, error)
}

// InvoiceQuery is a tagged invoice list request.
type InvoiceQuery struct {
	Seq      uint64
	Customer int
}

// InvoiceListResult carries the reply to an InvoiceQuery.
type InvoiceListResult struct {
	Seq      uint64
	Invoices []Invoice
	Err      error
}

// DetailRequest asks for one invoice's full record.
type DetailRequest struct {
	Seq uint64
	ID  int
}

// DetailResult carries the reply to a DetailRequest.
type DetailResult struct {
	Seq     uint64
	Invoice *Invoice
	Err     error
}

// InvoiceDeleteRequest is a confirmed invoice deletion.
type InvoiceDeleteRequest struct {
	ID       int
	Customer int // filter to re-fetch with afterwards
}

// InvoiceDeleteResult is the outcome of a deletion and the re-fetch after it.
type InvoiceDeleteResult struct {
	Request  InvoiceDeleteRequest
	Err      error
	Invoices []Invoice
	FetchErr error
}

// DownloadResult is the outcome of saving an invoice document.
type DownloadResult struct {
	ID   int
	Path string
	Err  error
}

// InvoiceBrowser is the state behind the invoice list and its detail pane.
type InvoiceBrowser struct {
	statusBoard
	deleteGate

	store InvoiceStore
	saver Saver

	Invoices  []Invoice
	Customers []Customer
	Filter    int // customer id, 0 for all
	Selected  *Invoice
	Loading   bool

	fetchSeq  uint64
	detailSeq uint64
}

// NewInvoiceBrowser creates a browser that saves downloads with saver.
func NewInvoiceBrowser(store InvoiceStore, saver Saver) *InvoiceBrowser {
	return &InvoiceBrowser{store: store, saver: saver}
}

// SetFilter scopes the list to one customer (0 for all) and starts a re-fetch.
func (b *InvoiceBrowser) SetFilter(customerID int) InvoiceQuery {
	b.Filter = customerID
	return b.BeginFetch()
}

// BeginFetch starts a list request with the current filter.
func (b *InvoiceBrowser) BeginFetch() InvoiceQuery {
	b.fetchSeq++
	b.Loading = true
	return InvoiceQuery{Seq: b.fetchSeq, Customer: b.Filter}
}

// Fetch runs q against the backend.
func (b *InvoiceBrowser) Fetch(ctx context.Context, q InvoiceQuery) InvoiceListResult {
	invoices, err := b.store.ListInvoices(ctx, q.Customer)
	return InvoiceListResult{Seq: q.Seq, Invoices: invoices, Err: err}
}

// ApplyFetch installs res unless a newer request was issued since.
func (b *InvoiceBrowser) ApplyFetch(res InvoiceListResult) bool {
	if res.Seq != b.fetchSeq {
		return false
	}
	b.Loading = false
	if res.Err != nil {
		b.setStatus(StatusError, "Failed to fetch invoices")
		return true
	}
	b.Invoices = res.Invoices
	return true
}

// Refresh re-reads the invoice list.
func (b *InvoiceBrowser) Refresh(ctx context.Context) error {
	res := b.Fetch(ctx, b.BeginFetch())
	b.ApplyFetch(res)
	return res.Err
}

// FetchCustomers lists the customers offered by the filter.
func (b *InvoiceBrowser) FetchCustomers(ctx context.Context) ([]Customer, error) {
	return b.store.ListCustomers(ctx, "")
}

// ApplyCustomers installs the filter choices. A failure leaves the old ones.
func (b *InvoiceBrowser) ApplyCustomers(customers []Customer, err error) {
	if err == nil {
		b.Customers = customers
	}
}

// LoadCustomers fetches and installs the filter choices.
func (b *InvoiceBrowser) LoadCustomers(ctx context.Context) error {
	customers, err := b.FetchCustomers(ctx)
	b.ApplyCustomers(customers, err)
	return err
}

// BeginDetail starts loading invoice id into the detail pane.
func (b *InvoiceBrowser) BeginDetail(id int) DetailRequest {
	b.detailSeq++
	return DetailRequest{Seq: b.detailSeq, ID: id}
}

// FetchDetail runs req against the backend.
func (b *InvoiceBrowser) FetchDetail(ctx context.Context, req DetailRequest) DetailResult {
	inv, err := b.store.GetInvoice(ctx, req.ID)
	return DetailResult{Seq: req.Seq, Invoice: inv, Err: err}
}

// ApplyDetail replaces the selection with res. Only the latest request counts.
func (b *InvoiceBrowser) ApplyDetail(res DetailResult) bool {
	if res.Seq != b.detailSeq {
		return false
	}
	if res.Err != nil {
		b.setStatus(StatusError, MessageFor(res.Err, "Failed to load invoice"))
		return true
	}
	b.Selected = res.Invoice
	return true
}

// ViewDetails makes invoice id the detail selection.
func (b *InvoiceBrowser) ViewDetails(ctx context.Context, id int) error {
	res := b.FetchDetail(ctx, b.BeginDetail(id))
	b.ApplyDetail(res)
	return res.Err
}

// ClearSelection empties the detail pane.
func (b *InvoiceBrowser) ClearSelection() {
	b.detailSeq++
	b.Selected = nil
}

// FetchDocument downloads invoice id and hands it to the saver. It touches no state.
func (b *InvoiceBrowser) FetchDocument(ctx context.Context, id int) DownloadResult {
	data, err := b.store.InvoicePDF(ctx, id)
	if err != nil {
		return DownloadResult{ID: id, Err: err}
	}
	path, err := b.saver.Save(PDFFileName(id), data)
	return DownloadResult{ID: id, Path: path, Err: err}
}

// ApplyDownload reports a download. The detail selection is left alone.
func (b *InvoiceBrowser) ApplyDownload(res DownloadResult) {
	if res.Err != nil {
		b.setStatus(StatusError, MessageFor(res.Err, "Failed to download PDF"))
		return
	}
	b.setStatus(StatusSuccess, fmt.Sprintf("Saved %s", res.Path))
}

// Download saves the document of invoice id.
func (b *InvoiceBrowser) Download(ctx context.Context, id int) error {
	res := b.FetchDocument(ctx, id)
	b.ApplyDownload(res)
	return res.Err
}

// PrepareDelete turns a confirmed delete into a request.
func (b *InvoiceBrowser) PrepareDelete() (InvoiceDeleteRequest, bool) {
	id, ok := b.take()
	if !ok {
		return InvoiceDeleteRequest{}, false
	}
	return InvoiceDeleteRequest{ID: id, Customer: b.Filter}, true
}

// ExecuteDelete deletes and, on success, re-reads the list.
func (b *InvoiceBrowser) ExecuteDelete(ctx context.Context, req InvoiceDeleteRequest) InvoiceDeleteResult {
	res := InvoiceDeleteResult{Request: req}
	if res.Err = b.store.DeleteInvoice(ctx, req.ID); res.Err != nil {
		return res
	}
	res.Invoices, res.FetchErr = b.store.ListInvoices(ctx, req.Customer)
	return res
}

// ApplyDelete folds a deletion into the state, dropping the detail pane when it
// showed the deleted invoice. It reports whether the filter changed meanwhile.
func (b *InvoiceBrowser) ApplyDelete(res InvoiceDeleteResult) bool {
	b.Loading = false
	if res.Err != nil {
		b.setStatus(StatusError, MessageFor(res.Err, "Failed to delete invoice"))
		return false
	}

	if b.Selected != nil && b.Selected.ID == res.Request.ID {
		b.ClearSelection()
	}

	b.fetchSeq++
	if res.FetchErr != nil {
		b.setStatus(StatusError, "Failed to fetch invoices")
		return false
	}
	b.Invoices = res.Invoices
	b.setStatus(StatusSuccess, "Invoice deleted successfully!")
	return res.Request.Customer != b.Filter
}

// ConfirmDelete deletes the invoice awaiting confirmation.
func (b *InvoiceBrowser) ConfirmDelete(ctx context.Context) error {
	req, ok := b.PrepareDelete()
	if !ok {
		return nil
	}
	res := b.ExecuteDelete(ctx, req)
	b.ApplyDelete(res)
	if res.Err != nil {
		return res.Err
	}
	return res.FetchErr
}
