// Package billingtest is an in-memory pharmacy billing backend speaking the
// same REST contract as the real service. Tests run it on httptest; the
// billing-stub command serves it for local development.
package billingtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
)

// Medicine is a stored medicine.
type Medicine struct {
	ID          int
	Name        string
	Price       decimal.Decimal
	Stock       int
	Description string
}

// Customer is a stored customer.
type Customer struct {
	ID      int
	Name    string
	Phone   string
	Address string
}

// Item is one line of a stored invoice.
type Item struct {
	ID       int
	Medicine int
	Quantity int
	Price    decimal.Decimal
}

// Invoice is a stored invoice.
type Invoice struct {
	ID       int
	Customer int
	Date     string
	Total    decimal.Decimal
	NoTotal  bool // served as a null total_amount
	Items    []Item
}

// Request is a recorded call.
type Request struct {
	Method string
	Path   string
	Query  string
	Header http.Header
}

type fault struct {
	method, path string
	status       int
	body         interface{}
}

// Server is the fake backend. The zero value is not usable; call New.
type Server struct {
	// Today stamps new invoices.
	Today func() string

	mu        sync.Mutex
	nextID    int
	medicines map[int]*Medicine
	customers map[int]*Customer
	invoices  map[int]*Invoice
	faults    []fault
	requests  []Request

	router chi.Router
}

// New returns an empty backend.
func New() *Server {
	s := &Server{
		Today:     func() string { return time.Now().Format("2006-01-02") },
		medicines: map[int]*Medicine{},
		customers: map[int]*Customer{},
		invoices:  map[int]*Invoice{},
	}
	s.router = s.routes()
	return s
}

// Start serves s on a test listener and returns the API base URL.
func Start(t testing.TB) (*Server, string) {
	t.Helper()
	s := New()
	ts := httptest.NewServer(s)
	t.Cleanup(ts.Close)
	return s, ts.URL + "/api"
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.record)
	r.Use(s.inject)

	r.Route("/api", func(r chi.Router) {
		r.Get("/", s.root)

		r.Get("/medicines/", s.listMedicines)
		r.Post("/medicines/", s.createMedicine)
		r.Get("/medicines/{id}/", s.getMedicine)
		r.Put("/medicines/{id}/", s.updateMedicine)
		r.Delete("/medicines/{id}/", s.deleteMedicine)

		r.Get("/customers/", s.listCustomers)
		r.Post("/customers/", s.createCustomer)
		r.Get("/customers/{id}/", s.getCustomer)
		r.Put("/customers/{id}/", s.updateCustomer)
		r.Delete("/customers/{id}/", s.deleteCustomer)

		r.Get("/invoices/", s.listInvoices)
		r.Post("/invoices/", s.createInvoice)
		r.Get("/invoices/{id}/", s.getInvoice)
		r.Delete("/invoices/{id}/", s.deleteInvoice)
		r.Get("/invoices/{id}/pdf/", s.invoicePDF)
	})
	return r
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Header: r.Header.Clone(),
		})
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) inject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		for i, f := range s.faults {
			if f.method == r.Method && "/api"+f.path == r.URL.Path {
				s.faults = append(s.faults[:i], s.faults[i+1:]...)
				s.mu.Unlock()
				respondJSON(w, f.status, f.body)
				return
			}
		}
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

// Fail makes the next request to method and path (relative to the API root,
// e.g. "/invoices/") answer status with a {"detail": detail} body. An empty
// detail sends a body without one.
func (s *Server) Fail(method, path string, status int, detail string) {
	var body interface{} = map[string][]string{"non_field_errors": {"rejected"}}
	if detail != "" {
		body = map[string]string{"detail": detail}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = append(s.faults, fault{method: method, path: path, status: status, body: body})
}

// Requests returns the calls served so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Count returns how many calls were made to method and path.
func (s *Server) Count(method, path string) int {
	n := 0
	for _, r := range s.Requests() {
		if r.Method == method && r.Path == "/api"+path {
			n++
		}
	}
	return n
}

// AddMedicine stores a medicine and returns its id.
func (s *Server) AddMedicine(name, price string, stock int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.medicines[s.nextID] = &Medicine{ID: s.nextID, Name: name, Price: decimal.RequireFromString(price), Stock: stock}
	return s.nextID
}

// AddCustomer stores a customer and returns its id.
func (s *Server) AddCustomer(name, phone string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.customers[s.nextID] = &Customer{ID: s.nextID, Name: name, Phone: phone}
	return s.nextID
}

// AddInvoice stores an invoice as is, without touching stock. An empty total
// is served as null.
func (s *Server) AddInvoice(customer int, total string, items ...Item) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	t := decimal.Zero
	if total != "" {
		t = decimal.RequireFromString(total)
	}
	for i := range items {
		items[i].ID = s.nextID*100 + i
	}
	s.invoices[s.nextID] = &Invoice{ID: s.nextID, Customer: customer, Date: s.Today(), Total: t, NoTotal: total == "", Items: items}
	return s.nextID
}

// Medicine returns a copy of a stored medicine.
func (s *Server) Medicine(id int) (Medicine, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.medicines[id]
	if !ok {
		return Medicine{}, false
	}
	return *m, true
}

// Invoice returns a copy of a stored invoice.
func (s *Server) Invoice(id int) (Invoice, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invoices[id]
	if !ok {
		return Invoice{}, false
	}
	cp := *inv
	cp.Items = append([]Item(nil), inv.Items...)
	return cp, true
}

// InvoiceCount returns how many invoices are stored.
func (s *Server) InvoiceCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.invoices)
}

// Handlers

func (s *Server) root(w http.ResponseWriter, r *http.Request) {
	base := "http://" + r.Host + "/api"
	respondJSON(w, http.StatusOK, map[string]string{
		"medicines": base + "/medicines/",
		"customers": base + "/customers/",
		"invoices":  base + "/invoices/",
	})
}

type medicineJSON struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Price       string `json:"price"`
	Stock       int    `json:"stock"`
	Description string `json:"description"`
}

func (m *Medicine) view() medicineJSON {
	return medicineJSON{ID: m.ID, Name: m.Name, Price: m.Price.StringFixed(2), Stock: m.Stock, Description: m.Description}
}

type customerJSON struct {
	ID      int    `json:"id"`
	Name    string `json:"customer_name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

func (c *Customer) view() customerJSON {
	return customerJSON{ID: c.ID, Name: c.Name, Phone: c.Phone, Address: c.Address}
}

type itemJSON struct {
	ID           int    `json:"id"`
	Invoice      int    `json:"invoice"`
	Medicine     int    `json:"medicine"`
	MedicineName string `json:"medicine_name"`
	Quantity     int    `json:"quantity"`
	Price        string `json:"price"`
}

type invoiceJSON struct {
	ID           int        `json:"id"`
	Customer     int        `json:"customer"`
	CustomerName string     `json:"customer_name"`
	Date         string     `json:"date"`
	TotalAmount  *string    `json:"total_amount"`
	Items        []itemJSON `json:"items"`
}

// invoiceView renders inv; callers hold s.mu.
func (s *Server) invoiceView(inv *Invoice) invoiceJSON {
	out := invoiceJSON{
		ID:          inv.ID,
		Customer:    inv.Customer,
		Date:        inv.Date,
		Items:       []itemJSON{},
	}
	if !inv.NoTotal {
		total := inv.Total.StringFixed(2)
		out.TotalAmount = &total
	}
	if c, ok := s.customers[inv.Customer]; ok {
		out.CustomerName = c.Name
	}
	for _, it := range inv.Items {
		row := itemJSON{ID: it.ID, Invoice: inv.ID, Medicine: it.Medicine, Quantity: it.Quantity, Price: it.Price.StringFixed(2)}
		if m, ok := s.medicines[it.Medicine]; ok {
			row.MedicineName = m.Name
		}
		out.Items = append(out.Items, row)
	}
	return out
}

// newestFirst returns the map keys in descending order.
func newestFirst[T any](m map[int]T) []int {
	ids := make([]int, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(ids)))
	return ids
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

func pathID(r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	return id, err == nil
}

func (s *Server) listMedicines(w http.ResponseWriter, r *http.Request) {
	search := r.URL.Query().Get("search")
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []medicineJSON{}
	for _, id := range newestFirst(s.medicines) {
		if m := s.medicines[id]; search == "" || containsFold(m.Name, search) {
			out = append(out, m.view())
		}
	}
	respondJSON(w, http.StatusOK, out)
}

type medicineInput struct {
	Name        string           `json:"name"`
	Price       *decimal.Decimal `json:"price"`
	Stock       *int             `json:"stock"`
	Description string           `json:"description"`
}

func (in medicineInput) validate() map[string][]string {
	errs := map[string][]string{}
	if strings.TrimSpace(in.Name) == "" {
		errs["name"] = []string{"This field may not be blank."}
	}
	if in.Price == nil {
		errs["price"] = []string{"This field is required."}
	}
	if in.Stock != nil && *in.Stock < 0 {
		errs["stock"] = []string{"Ensure this value is greater than or equal to 0."}
	}
	return errs
}

func (s *Server) createMedicine(w http.ResponseWriter, r *http.Request) {
	var in medicineInput
	if !decode(w, r, &in) {
		return
	}
	if errs := in.validate(); len(errs) > 0 {
		respondJSON(w, http.StatusBadRequest, errs)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	m := &Medicine{ID: s.nextID, Name: in.Name, Price: *in.Price, Description: in.Description}
	if in.Stock != nil {
		m.Stock = *in.Stock
	}
	s.medicines[m.ID] = m
	respondJSON(w, http.StatusCreated, m.view())
}

func (s *Server) getMedicine(w http.ResponseWriter, r *http.Request) {
	id, _ := pathID(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.medicines[id]
	if !ok {
		notFound(w)
		return
	}
	respondJSON(w, http.StatusOK, m.view())
}

func (s *Server) updateMedicine(w http.ResponseWriter, r *http.Request) {
	id, _ := pathID(r)
	var in medicineInput
	if !decode(w, r, &in) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.medicines[id]
	if !ok {
		notFound(w)
		return
	}
	if errs := in.validate(); len(errs) > 0 {
		respondJSON(w, http.StatusBadRequest, errs)
		return
	}
	m.Name, m.Price, m.Description = in.Name, *in.Price, in.Description
	if in.Stock != nil {
		m.Stock = *in.Stock
	}
	respondJSON(w, http.StatusOK, m.view())
}

func (s *Server) deleteMedicine(w http.ResponseWriter, r *http.Request) {
	id, _ := pathID(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.medicines[id]; !ok {
		notFound(w)
		return
	}
	delete(s.medicines, id)
	// invoice lines cascade with their medicine
	for _, inv := range s.invoices {
		kept := inv.Items[:0]
		for _, it := range inv.Items {
			if it.Medicine != id {
				kept = append(kept, it)
			}
		}
		inv.Items = kept
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listCustomers(w http.ResponseWriter, r *http.Request) {
	search := r.URL.Query().Get("search")
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []customerJSON{}
	for _, id := range newestFirst(s.customers) {
		if c := s.customers[id]; search == "" || containsFold(c.Name, search) {
			out = append(out, c.view())
		}
	}
	respondJSON(w, http.StatusOK, out)
}

type customerInput struct {
	Name    string `json:"customer_name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

func (in customerInput) validate() map[string][]string {
	errs := map[string][]string{}
	if strings.TrimSpace(in.Name) == "" {
		errs["customer_name"] = []string{"This field may not be blank."}
	}
	if len(in.Phone) > 15 {
		errs["phone"] = []string{"Ensure this field has no more than 15 characters."}
	}
	return errs
}

func (s *Server) createCustomer(w http.ResponseWriter, r *http.Request) {
	var in customerInput
	if !decode(w, r, &in) {
		return
	}
	if errs := in.validate(); len(errs) > 0 {
		respondJSON(w, http.StatusBadRequest, errs)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	c := &Customer{ID: s.nextID, Name: in.Name, Phone: in.Phone, Address: in.Address}
	s.customers[c.ID] = c
	respondJSON(w, http.StatusCreated, c.view())
}

func (s *Server) getCustomer(w http.ResponseWriter, r *http.Request) {
	id, _ := pathID(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.customers[id]
	if !ok {
		notFound(w)
		return
	}
	respondJSON(w, http.StatusOK, c.view())
}

func (s *Server) updateCustomer(w http.ResponseWriter, r *http.Request) {
	id, _ := pathID(r)
	var in customerInput
	if !decode(w, r, &in) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.customers[id]
	if !ok {
		notFound(w)
		return
	}
	if errs := in.validate(); len(errs) > 0 {
		respondJSON(w, http.StatusBadRequest, errs)
		return
	}
	c.Name, c.Phone, c.Address = in.Name, in.Phone, in.Address
	respondJSON(w, http.StatusOK, c.view())
}

func (s *Server) deleteCustomer(w http.ResponseWriter, r *http.Request) {
	id, _ := pathID(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.customers[id]; !ok {
		notFound(w)
		return
	}
	delete(s.customers, id)
	for invID, inv := range s.invoices {
		if inv.Customer == id {
			delete(s.invoices, invID)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listInvoices(w http.ResponseWriter, r *http.Request) {
	customer := r.URL.Query().Get("customer")
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []invoiceJSON{}
	for _, id := range newestFirst(s.invoices) {
		inv := s.invoices[id]
		if customer != "" && strconv.Itoa(inv.Customer) != customer {
			continue
		}
		out = append(out, s.invoiceView(inv))
	}
	respondJSON(w, http.StatusOK, out)
}

type invoiceInput struct {
	Customer *int `json:"customer"`
	Items    []struct {
		Medicine *int             `json:"medicine"`
		Quantity int              `json:"quantity"`
		Price    *decimal.Decimal `json:"price"`
	} `json:"items"`
}

func (s *Server) createInvoice(w http.ResponseWriter, r *http.Request) {
	var in invoiceInput
	if !decode(w, r, &in) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	errs := map[string]interface{}{}
	if in.Customer == nil {
		errs["customer"] = []string{"This field is required."}
	} else if _, ok := s.customers[*in.Customer]; !ok {
		errs["customer"] = []string{fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", *in.Customer)}
	}
	if in.Items == nil {
		errs["items"] = []string{"This field is required."}
	}
	itemErrs := make([]map[string][]string, len(in.Items))
	bad := false
	for i, it := range in.Items {
		e := map[string][]string{}
		switch {
		case it.Medicine == nil:
			e["medicine"] = []string{"This field may not be null."}
		case s.medicines[*it.Medicine] == nil:
			e["medicine"] = []string{fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", *it.Medicine)}
		}
		if it.Quantity < 0 {
			e["quantity"] = []string{"Ensure this value is greater than or equal to 0."}
		}
		if it.Price == nil {
			e["price"] = []string{"This field is required."}
		}
		if len(e) > 0 {
			bad = true
		}
		itemErrs[i] = e
	}
	if bad {
		errs["items"] = itemErrs
	}
	if len(errs) > 0 {
		respondJSON(w, http.StatusBadRequest, errs)
		return
	}

	s.nextID++
	inv := &Invoice{ID: s.nextID, Customer: *in.Customer, Date: s.Today(), Total: decimal.Zero}
	for i, it := range in.Items {
		qty := decimal.NewFromInt(int64(it.Quantity))
		inv.Total = inv.Total.Add(qty.Mul(*it.Price))

		m := s.medicines[*it.Medicine]
		m.Stock = max(m.Stock-it.Quantity, 0)

		inv.Items = append(inv.Items, Item{
			ID:       inv.ID*100 + i,
			Medicine: m.ID,
			Quantity: it.Quantity,
			Price:    it.Price.Round(2),
		})
	}
	inv.Total = inv.Total.Round(2)
	s.invoices[inv.ID] = inv
	respondJSON(w, http.StatusCreated, s.invoiceView(inv))
}

func (s *Server) getInvoice(w http.ResponseWriter, r *http.Request) {
	id, _ := pathID(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invoices[id]
	if !ok {
		notFound(w)
		return
	}
	respondJSON(w, http.StatusOK, s.invoiceView(inv))
}

func (s *Server) deleteInvoice(w http.ResponseWriter, r *http.Request) {
	id, _ := pathID(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.invoices[id]; !ok {
		notFound(w)
		return
	}
	delete(s.invoices, id)
	w.WriteHeader(http.StatusNoContent)
}

// PDFBody is the document the fake serves for an invoice.
func PDFBody(id int) []byte {
	return []byte(fmt.Sprintf("%%PDF-1.4\n%% invoice %d\n%%%%EOF\n", id))
}

func (s *Server) invoicePDF(w http.ResponseWriter, r *http.Request) {
	id, _ := pathID(r)
	s.mu.Lock()
	_, ok := s.invoices[id]
	s.mu.Unlock()
	if !ok {
		notFound(w)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="invoice_%d.pdf"`, id))
	w.WriteHeader(http.StatusOK)
	w.Write(PDFBody(id))
}

// Helpers

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"detail": "JSON parse error - " + err.Error()})
		return false
	}
	return true
}

func notFound(w http.ResponseWriter) {
	respondJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	_ = encoder.Encode(payload)
}
