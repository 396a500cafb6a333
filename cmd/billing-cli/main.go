package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mikelcalvo/billing-cli/internal/billing"
)

func main() {
	// A .env file is optional; real environment variables win.
	_ = godotenv.Load()

	cmd := "tui"
	if len(os.Args) >= 2 {
		cmd = os.Args[1]
	}

	// Help doesn't need config
	if cmd == "help" || cmd == "-h" || cmd == "--help" {
		printUsage()
		os.Exit(0)
	}

	if cmd == "version" || cmd == "-v" || cmd == "--version" {
		fmt.Printf("Billing CLI v%s\n", billing.Version)
		fmt.Printf("Created by %s in %s\n", billing.Author, billing.Year)
		os.Exit(0)
	}

	if cmd == "setup" {
		if _, err := billing.RunSetupTUI(billing.ConfigFileName); err != nil {
			fail(err)
		}
		os.Exit(0)
	}

	config, err := billing.LoadConfig()
	if err != nil {
		fail(err)
	}

	// First TUI run without any configuration goes through the wizard.
	if cmd == "tui" && config.Path == "" && os.Getenv("BILLING_API_URL") == "" {
		saved, err := billing.RunSetupTUI(billing.ConfigFileName)
		if err != nil {
			fail(err)
		}
		if !saved {
			os.Exit(0)
		}
		if config, err = billing.LoadConfig(); err != nil {
			fail(err)
		}
	}

	logger, logCloser, err := billing.NewLogger(config)
	if err != nil {
		fail(err)
	}
	defer logCloser.Close()

	client := billing.NewClient(config)
	client.Logger = logger

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if config.MetricsAddr != "" {
		go func() {
			if err := client.ServeMetrics(ctx, config.MetricsAddr); err != nil {
				logger.Error("metrics listener stopped", "error", err)
			}
		}()
	}

	var args []string
	if len(os.Args) > 2 {
		args = os.Args[2:]
	}

	var cmdErr error
	switch cmd {
	case "tui":
		cmdErr = runTUI(client, args)
	case "ping":
		cmdErr = client.CmdPing()
	case "config":
		cmdErr = client.CmdConfig()
	case "medicine", "med":
		cmdErr = client.CmdMedicine(args)
	case "customer":
		cmdErr = client.CmdCustomer(args)
	case "invoice", "inv":
		cmdErr = client.CmdInvoice(args)
	case "dashboard":
		cmdErr = client.CmdDashboard(args)
	case "export":
		cmdErr = client.CmdExport(args)
	case "import":
		cmdErr = client.CmdImport(args)
	default:
		fmt.Printf("%sUnknown command: %s%s\n", billing.Red, cmd, billing.Reset)
		printUsage()
		exit(logCloser, 1)
	}

	if cmdErr != nil {
		logger.Error("command failed", "command", cmd, "error", cmdErr)
		fmt.Printf("%sError: %s%s\n", billing.Red, cmdErr, billing.Reset)
		exit(logCloser, 1)
	}
}

func runTUI(client *billing.Client, args []string) error {
	path := ""
	for _, arg := range args {
		if strings.HasPrefix(arg, "--route=") {
			path = strings.TrimPrefix(arg, "--route=")
		}
	}
	route, err := billing.ParseRoute(path)
	if err != nil {
		return err
	}
	return billing.RunTUI(client, route)
}

func fail(err error) {
	fmt.Printf("%sError: %s%s\n", billing.Red, err, billing.Reset)
	os.Exit(1)
}

// exit flushes the log file before leaving, since os.Exit skips deferred calls.
func exit(c io.Closer, code int) {
	c.Close()
	os.Exit(code)
}

func printUsage() {
	g, r, y := billing.Green, billing.Reset, billing.Yellow
	fmt.Printf(`%sBilling CLI%s - pharmacy billing terminal

Usage: billing-cli <command> [subcommand] [args...]
       billing-cli                       Open the TUI

%sGeneral:%s
  %stui [--route=/invoices]%s           Open the TUI, optionally on a screen
  %ssetup%s                             Run the configuration wizard
  %sping%s                              Test the connection to the backend
  %sconfig%s                            Show current configuration
  %sversion%s                           Show version information

%sMedicines:%s
  %smedicine list [--search=X]%s        List medicines
  %smedicine get <id>%s                 Show one medicine
  %smedicine create <name> <price> <stock> [--description=X]%s
                                      Add a medicine
  %smedicine update <id> <prop=val>%s   Change name, price, stock or description
  %smedicine delete <id> [--yes]%s      Delete a medicine

%sCustomers:%s
  %scustomer list [--search=X]%s        List customers
  %scustomer get <id>%s                 Show one customer
  %scustomer create <name> [--phone=X] [--address=X]%s
                                      Add a customer
  %scustomer update <id> <prop=val>%s   Change name, phone or address
  %scustomer delete <id> [--yes]%s      Delete a customer

%sInvoices:%s
  %sinvoice list [--customer=ID]%s      List invoices
  %sinvoice get <id>%s                  Show an invoice with its items
  %sinvoice create <customer> <med:qty[:price]>...%s
                                      Bill a customer
  %sinvoice pdf <id> [-o dir]%s         Download invoice_<id>.pdf
  %sinvoice delete <id> [--yes]%s       Delete an invoice

%sReports:%s
  %sdashboard [summary|stock]%s         Totals, revenue and stock alerts

%sImport/Export:%s
  %sexport <type> -o <file>%s           Export medicines, customers or invoices (.csv/.xlsx)
  %simport <type> -f <file> [--dry-run]%s Import medicines or customers

%sExamples:%s
  billing-cli ping
  billing-cli medicine create "Paracetamol 500mg" 2.50 100 --description="strip of 10"
  billing-cli invoice create 4 12:2 15:1:9.99
  billing-cli tui --route=/create-invoice

`,
		billing.Blue, r,
		y, r,
		g, r, g, r, g, r, g, r, g, r,
		y, r,
		g, r, g, r, g, r, g, r, g, r,
		y, r,
		g, r, g, r, g, r, g, r, g, r,
		y, r,
		g, r, g, r, g, r, g, r, g, r,
		y, r,
		g, r,
		y, r,
		g, r, g, r,
		y, r,
	)
}
