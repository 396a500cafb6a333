package billing

import (
	"context"
	"net/http"
	"reflect"
	"testing"
)

func newMedicineCollection(t *testing.T) (*Collection[Medicine], *Client, func() []Medicine) {
	t.Helper()
	backend, client := newTestClient(t)
	backend.AddMedicine("Paracetamol", "12.50", 50)
	backend.AddMedicine("Amoxicillin", "8.00", 4)
	backend.AddMedicine("Cetirizine", "1.20", 0)

	fresh := func() []Medicine {
		items, err := client.ListMedicines(context.Background(), "")
		if err != nil {
			t.Fatalf("fresh fetch: %v", err)
		}
		return items
	}
	return NewCollection[Medicine](client.Medicines(), MedicineSchema), client, fresh
}

func names(items []Medicine) []string {
	out := make([]string, len(items))
	for i, m := range items {
		out[i] = m.Name
	}
	return out
}

func TestCollectionRefreshKeepsBackendOrder(t *testing.T) {
	coll, _, _ := newMedicineCollection(t)

	if err := coll.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	want := []string{"Cetirizine", "Amoxicillin", "Paracetamol"}
	if got := names(coll.Items); !reflect.DeepEqual(got, want) {
		t.Errorf("items = %v, want %v", got, want)
	}
	if coll.Loading {
		t.Error("still loading after refresh")
	}
}

func TestCollectionSearch(t *testing.T) {
	coll, _, _ := newMedicineCollection(t)
	ctx := context.Background()

	first := coll.SetSearch("a")
	second := coll.SetSearch("amox")
	if coll.SearchSettled(first) {
		t.Error("an older keystroke must not settle")
	}
	if !coll.SearchSettled(second) {
		t.Fatal("latest keystroke should settle")
	}

	if err := coll.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	if got := names(coll.Items); !reflect.DeepEqual(got, []string{"Amoxicillin"}) {
		t.Errorf("items = %v", got)
	}
}

func TestCollectionDropsStaleFetch(t *testing.T) {
	coll, _, _ := newMedicineCollection(t)
	ctx := context.Background()

	coll.SetSearch("parac")
	older := coll.BeginFetch()
	coll.SetSearch("cetir")
	newer := coll.BeginFetch()

	// The newer reply lands first, then the older one.
	if !coll.ApplyFetch(coll.Fetch(ctx, newer)) {
		t.Fatal("newest result was rejected")
	}
	if coll.ApplyFetch(coll.Fetch(ctx, older)) {
		t.Error("stale result was applied")
	}
	if got := names(coll.Items); !reflect.DeepEqual(got, []string{"Cetirizine"}) {
		t.Errorf("items = %v, want the latest search", got)
	}
}

func TestCollectionCreate(t *testing.T) {
	coll, _, fresh := newMedicineCollection(t)
	ctx := context.Background()

	coll.StartCreate()
	if !coll.FormVisible || coll.Editing != nil {
		t.Fatal("create form not open")
	}
	if err := coll.SubmitForm(ctx, []string{"Ibuprofen", "3.40", "25", "200mg"}); err != nil {
		t.Fatalf("SubmitForm: %v", err)
	}

	if coll.FormVisible || coll.Editing != nil {
		t.Error("form should close after a successful create")
	}
	if !reflect.DeepEqual(coll.Items, fresh()) {
		t.Errorf("items differ from a fresh fetch: %v", names(coll.Items))
	}
	if coll.Items[0].Name != "Ibuprofen" || coll.Items[0].Stock != 25 {
		t.Errorf("new medicine = %+v", coll.Items[0])
	}
	if coll.Status.Kind != StatusSuccess || coll.Status.Text != "Medicine created successfully!" {
		t.Errorf("status = %+v", coll.Status)
	}
}

func TestCollectionUpdate(t *testing.T) {
	coll, _, fresh := newMedicineCollection(t)
	ctx := context.Background()
	coll.Refresh(ctx)

	target := coll.Items[1]
	coll.StartEdit(target)
	want := []string{"Amoxicillin", "8.00", "4", ""}
	if !reflect.DeepEqual(coll.FormValues, want) {
		t.Errorf("form values = %q, want %q", coll.FormValues, want)
	}

	if err := coll.SubmitForm(ctx, []string{"Amoxicillin 250mg", "8.00", "40", ""}); err != nil {
		t.Fatalf("SubmitForm: %v", err)
	}
	if !reflect.DeepEqual(coll.Items, fresh()) {
		t.Error("items differ from a fresh fetch")
	}
	if len(coll.Items) != 3 {
		t.Errorf("got %d items, update must not duplicate", len(coll.Items))
	}
	if coll.Items[1].Name != "Amoxicillin 250mg" || coll.Items[1].Stock != 40 {
		t.Errorf("updated medicine = %+v", coll.Items[1])
	}
	if coll.Status.Text != "Medicine updated successfully!" {
		t.Errorf("status = %q", coll.Status.Text)
	}
}

func TestCollectionSubmitFailureKeepsForm(t *testing.T) {
	backend, client := newTestClient(t)
	coll := NewCollection[Medicine](client.Medicines(), MedicineSchema)
	ctx := context.Background()

	values := []string{"Ibuprofen", "3.40", "25", ""}

	coll.StartCreate()
	backend.Fail(http.MethodPost, "/medicines/", http.StatusBadRequest, "Duplicate medicine")
	if err := coll.SubmitForm(ctx, values); err == nil {
		t.Fatal("expected an error")
	}
	if !coll.FormVisible || !reflect.DeepEqual(coll.FormValues, values) {
		t.Error("form should stay open with the entered values")
	}
	if coll.Status.Kind != StatusError || coll.Status.Text != "Duplicate medicine" {
		t.Errorf("status = %+v", coll.Status)
	}

	backend.Fail(http.MethodPost, "/medicines/", http.StatusInternalServerError, "")
	coll.SubmitForm(ctx, values)
	if coll.Status.Text != "Failed to save medicine" {
		t.Errorf("status = %q, want the generic fallback", coll.Status.Text)
	}
}

func TestCollectionFailedWriteStopsLoading(t *testing.T) {
	backend, client := newTestClient(t)
	coll := NewCollection[Medicine](client.Medicines(), MedicineSchema)
	ctx := context.Background()

	coll.StartCreate()
	req, err := coll.PrepareSubmit([]string{"Ibuprofen", "3.40", "25", ""})
	if err != nil {
		t.Fatal(err)
	}
	backend.Fail(http.MethodPost, "/medicines/", http.StatusBadRequest, "Name taken")
	coll.Loading = true
	coll.ApplyMutation(coll.Execute(ctx, req))
	if coll.Loading || !coll.FormVisible {
		t.Fatalf("loading = %v, form = %v after a rejected save", coll.Loading, coll.FormVisible)
	}

	coll.Loading = true
	coll.ApplyMutation(coll.Execute(ctx, req))
	if coll.Loading || coll.FormVisible || len(coll.Items) != 1 {
		t.Errorf("retry: loading = %v, form = %v, items = %v", coll.Loading, coll.FormVisible, names(coll.Items))
	}
}

func TestCollectionValidationSendsNothing(t *testing.T) {
	backend, client := newTestClient(t)
	coll := NewCollection[Medicine](client.Medicines(), MedicineSchema)

	tests := []struct {
		values []string
		msg    string
	}{
		{[]string{"", "1.00", "1", ""}, "Medicine name is required"},
		{[]string{"Zinc", "abc", "1", ""}, "Price must be a number of at least 0"},
		{[]string{"Zinc", "-1", "1", ""}, "Price must be a number of at least 0"},
		{[]string{"Zinc", "1.00", "-3", ""}, "Stock cannot be negative"},
	}
	for _, tt := range tests {
		coll.StartCreate()
		if err := coll.SubmitForm(context.Background(), tt.values); err == nil {
			t.Errorf("%q: expected a validation error", tt.values)
		}
		if coll.Status.Text != tt.msg {
			t.Errorf("%q: status = %q, want %q", tt.values, coll.Status.Text, tt.msg)
		}
	}
	if n := backend.Count(http.MethodPost, "/medicines/"); n != 0 {
		t.Errorf("%d requests sent for invalid forms", n)
	}
}

func TestCollectionDeleteNeedsConfirmation(t *testing.T) {
	backend, client := newTestClient(t)
	backend.AddMedicine("Paracetamol", "12.50", 50)
	id := backend.AddMedicine("Amoxicillin", "8.00", 4)
	coll := NewCollection[Medicine](client.Medicines(), MedicineSchema)
	ctx := context.Background()
	coll.Refresh(ctx)

	if err := coll.ConfirmDelete(ctx); err != nil {
		t.Fatal(err)
	}
	coll.RequestDelete(id)
	if got, ok := coll.ConfirmingDelete(); !ok || got != id {
		t.Fatalf("ConfirmingDelete = %d, %v", got, ok)
	}
	coll.CancelDelete()
	if err := coll.ConfirmDelete(ctx); err != nil {
		t.Fatal(err)
	}
	if n := backend.Count(http.MethodDelete, "/medicines/2/"); n != 0 {
		t.Fatalf("%d deletes sent without confirmation", n)
	}

	coll.RequestDelete(id)
	if err := coll.ConfirmDelete(ctx); err != nil {
		t.Fatalf("ConfirmDelete: %v", err)
	}
	if got := names(coll.Items); !reflect.DeepEqual(got, []string{"Paracetamol"}) {
		t.Errorf("items = %v", got)
	}
	if coll.Status.Text != "Medicine deleted successfully!" {
		t.Errorf("status = %q", coll.Status.Text)
	}
	if _, ok := coll.ConfirmingDelete(); ok {
		t.Error("gate still armed")
	}
}

func TestCollectionDeleteFailureLeavesItems(t *testing.T) {
	backend, client := newTestClient(t)
	id := backend.AddMedicine("Paracetamol", "12.50", 50)
	coll := NewCollection[Medicine](client.Medicines(), MedicineSchema)
	ctx := context.Background()
	coll.Refresh(ctx)
	before := coll.Items

	backend.Fail(http.MethodDelete, "/medicines/1/", http.StatusConflict, "")
	coll.RequestDelete(id)
	if err := coll.ConfirmDelete(ctx); err == nil {
		t.Fatal("expected an error")
	}
	if !reflect.DeepEqual(coll.Items, before) {
		t.Error("failed delete changed the list")
	}
	if coll.Status.Kind != StatusError || coll.Status.Text != "Failed to delete medicine" {
		t.Errorf("status = %+v", coll.Status)
	}
}

func TestCollectionMutationReportsSearchChange(t *testing.T) {
	coll, _, _ := newMedicineCollection(t)
	ctx := context.Background()

	coll.StartCreate()
	req, err := coll.PrepareSubmit([]string{"Ibuprofen", "3.40", "25", ""})
	if err != nil {
		t.Fatal(err)
	}
	res := coll.Execute(ctx, req)

	coll.SetSearch("ibu")
	if !coll.ApplyMutation(res) {
		t.Error("a search typed during the write should ask for a refetch")
	}
}

func TestStatusClearKeepsNewerMessage(t *testing.T) {
	var board statusBoard

	board.setStatus(StatusError, "Failed to fetch medicines")
	old := board.Status.ID
	board.setStatus(StatusSuccess, "Medicine created successfully!")

	if board.ClearStatus(old) {
		t.Error("an older timer cleared a newer status")
	}
	if board.Status.Text != "Medicine created successfully!" {
		t.Errorf("status = %q", board.Status.Text)
	}
	if !board.ClearStatus(board.Status.ID) || board.Status.Text != "" {
		t.Error("current status was not cleared")
	}
}

func TestCustomerCollection(t *testing.T) {
	backend, client := newTestClient(t)
	backend.AddCustomer("Ravi Kumar", "9000000001")
	coll := NewCollection[Customer](client.Customers(), CustomerSchema)
	ctx := context.Background()

	coll.StartCreate()
	if err := coll.SubmitForm(ctx, []string{"Asha Rao", "98450 12345", "MG Road"}); err != nil {
		t.Fatalf("SubmitForm: %v", err)
	}
	if len(coll.Items) != 2 || coll.Items[0].Name != "Asha Rao" || coll.Items[0].Address != "MG Road" {
		t.Errorf("items = %+v", coll.Items)
	}
	if coll.Status.Text != "Customer created successfully!" {
		t.Errorf("status = %q", coll.Status.Text)
	}

	coll.SetSearch("ravi")
	coll.Refresh(ctx)
	if len(coll.Items) != 1 || coll.Items[0].Label() != "Ravi Kumar (9000000001)" {
		t.Errorf("search result = %+v", coll.Items)
	}
}
