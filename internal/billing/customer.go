package billing

import (
	"context"
	"fmt"
	"strings"
)

// Customer is a billed party
type Customer struct {
	ID      int    `json:"id,omitempty"`
	Name    string `json:"customer_name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

func (c Customer) EntityID() int { return c.ID }

// Label is the name with the phone number in brackets when one is known.
func (c Customer) Label() string {
	if c.Phone != "" {
		return fmt.Sprintf("%s (%s)", c.Name, c.Phone)
	}
	return c.Name
}

// CustomersPath is the backend collection endpoint for customers.
const CustomersPath = "/customers/"

// Customers returns the customer resource.
func (c *Client) Customers() Endpoint[Customer] {
	return Endpoint[Customer]{client: c, path: CustomersPath}
}

// ListCustomers fetches customers, filtered by name when search is set.
func (c *Client) ListCustomers(ctx context.Context, search string) ([]Customer, error) {
	return c.Customers().List(ctx, search)
}

type customerSchema struct{}

// CustomerSchema is the form schema for customers.
var CustomerSchema Schema[Customer] = customerSchema{}

func (customerSchema) Noun() string { return "customer" }

func (customerSchema) Fields() []Field {
	return []Field{
		{Label: "Customer Name", Placeholder: "Asha Rao", Required: true},
		{Label: "Phone", Placeholder: "optional"},
		{Label: "Address", Placeholder: "optional"},
	}
}

func (customerSchema) Values(c Customer) []string {
	return []string{c.Name, c.Phone, c.Address}
}

func (customerSchema) Parse(values []string) (Customer, error) {
	values = padValues(values, 3)
	name := strings.TrimSpace(values[0])
	if name == "" {
		return Customer{}, &ValidationError{Message: "Customer name is required"}
	}
	return Customer{
		Name:    name,
		Phone:   strings.TrimSpace(values[1]),
		Address: strings.TrimSpace(values[2]),
	}, nil
}

// CmdCustomer handles customer commands
func (c *Client) CmdCustomer(args []string) error {
	if len(args) == 0 {
		fmt.Println("Usage: billing-cli customer <subcommand> [args...]")
		fmt.Println("Subcommands: list, get, create, update, delete")
		fmt.Println()
		fmt.Println("Examples:")
		fmt.Println("  billing-cli customer list --search=rao")
		fmt.Println("  billing-cli customer get 4")
		fmt.Println("  billing-cli customer create \"Asha Rao\" --phone=\"98450 12345\" --address=\"MG Road\"")
		fmt.Println("  billing-cli customer update 4 phone=\"98450 00000\"")
		fmt.Println("  billing-cli customer delete 4")
		return nil
	}

	ctx := context.Background()
	switch args[0] {
	case "list":
		return c.customerList(ctx, flagValue(args[1:], "--search="))
	case "get":
		if len(args) < 2 {
			return fmt.Errorf("usage: billing-cli customer get <id>")
		}
		id, err := parseID(args[1])
		if err != nil {
			return err
		}
		return c.customerGet(ctx, id)
	case "create":
		if len(args) < 2 {
			return fmt.Errorf("usage: billing-cli customer create <name> [--phone=X] [--address=X]")
		}
		values := []string{args[1], flagValue(args[2:], "--phone="), flagValue(args[2:], "--address=")}
		return c.customerCreate(ctx, values)
	case "update":
		if len(args) < 3 {
			return fmt.Errorf("usage: billing-cli customer update <id> <prop=val> [...]")
		}
		id, err := parseID(args[1])
		if err != nil {
			return err
		}
		return c.customerUpdate(ctx, id, args[2:])
	case "delete":
		if len(args) < 2 {
			return fmt.Errorf("usage: billing-cli customer delete <id> [--yes]")
		}
		id, err := parseID(args[1])
		if err != nil {
			return err
		}
		if !confirm(fmt.Sprintf("Delete customer #%d?", id), args[2:]) {
			fmt.Printf("%sCancelled%s\n", Yellow, Reset)
			return nil
		}
		return c.customerDelete(ctx, id)
	default:
		return fmt.Errorf("unknown customer subcommand: %s", args[0])
	}
}

func (c *Client) customerList(ctx context.Context, search string) error {
	fmt.Printf("%sFetching customers...%s\n", Blue, Reset)

	customers, err := c.ListCustomers(ctx, search)
	if err != nil {
		return err
	}

	if len(customers) == 0 {
		fmt.Printf("%sNo customers found%s\n", Yellow, Reset)
		return nil
	}

	fmt.Printf("\n%sCustomers (%d):%s\n", Cyan, len(customers), Reset)
	for _, cu := range customers {
		fmt.Printf("  #%-4d %s", cu.ID, cu.Name)
		if cu.Phone != "" {
			fmt.Printf(" - %s%s%s", Yellow, cu.Phone, Reset)
		}
		fmt.Println()
	}
	return nil
}

func (c *Client) customerGet(ctx context.Context, id int) error {
	cu, err := c.Customers().Get(ctx, id)
	if err != nil {
		return err
	}

	fmt.Printf("%sCustomer #%d%s\n", Cyan, cu.ID, Reset)
	fmt.Printf("  Name: %s\n", cu.Name)
	if cu.Phone != "" {
		fmt.Printf("  Phone: %s\n", cu.Phone)
	}
	if cu.Address != "" {
		fmt.Printf("  Address: %s\n", cu.Address)
	}
	return nil
}

func (c *Client) customerCreate(ctx context.Context, values []string) error {
	cu, err := CustomerSchema.Parse(values)
	if err != nil {
		return err
	}

	fmt.Printf("%sCreating customer: %s%s\n", Blue, cu.Name, Reset)
	if cu.Phone != "" {
		fmt.Printf("  Phone: %s\n", cu.Phone)
	}
	if cu.Address != "" {
		fmt.Printf("  Address: %s\n", cu.Address)
	}

	created, err := c.Customers().Create(ctx, cu)
	if err != nil {
		return fmt.Errorf("%s", MessageFor(err, "Failed to save customer"))
	}

	fmt.Printf("%s✓ Customer created: #%d %s%s\n", Green, created.ID, created.Name, Reset)
	return nil
}

func (c *Client) customerUpdate(ctx context.Context, id int, settings []string) error {
	current, err := c.Customers().Get(ctx, id)
	if err != nil {
		return err
	}

	values := CustomerSchema.Values(current)
	for _, s := range settings {
		key, val, ok := strings.Cut(s, "=")
		if !ok {
			return fmt.Errorf("invalid setting %q, expected prop=val", s)
		}
		switch key {
		case "name", "customer_name":
			values[0] = val
		case "phone":
			values[1] = val
		case "address":
			values[2] = val
		default:
			return fmt.Errorf("unknown customer property: %s", key)
		}
	}

	cu, err := CustomerSchema.Parse(values)
	if err != nil {
		return err
	}

	fmt.Printf("%sUpdating customer #%d%s\n", Blue, id, Reset)
	if _, err := c.Customers().Update(ctx, id, cu); err != nil {
		return fmt.Errorf("%s", MessageFor(err, "Failed to save customer"))
	}

	fmt.Printf("%s✓ Customer updated: #%d%s\n", Green, id, Reset)
	return nil
}

func (c *Client) customerDelete(ctx context.Context, id int) error {
	fmt.Printf("%sDeleting customer #%d%s\n", Blue, id, Reset)

	if err := c.Customers().Delete(ctx, id); err != nil {
		return fmt.Errorf("%s", MessageFor(err, "Failed to delete customer"))
	}

	fmt.Printf("%s✓ Customer deleted: #%d%s\n", Green, id, Reset)
	return nil
}
