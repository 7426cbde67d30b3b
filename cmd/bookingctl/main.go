package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/kong"
	"gopkg.in/yaml.v3"

	"supperclub/internal/aggregate"
	"supperclub/internal/models"
	"supperclub/internal/pricing"
	"supperclub/internal/wizard"
)

type cli struct {
	Quote   quoteCmd   `cmd:"" help:"Print the price breakdown for a session, guest count and add-on."`
	Derive  deriveCmd  `cmd:"" help:"Reconcile a veg/non-veg split against a guest total."`
	Summary summaryCmd `cmd:"" help:"Summarize a YAML or JSON file of bookings."`
}

type quoteCmd struct {
	Session string `required:"" enum:"brunch,lunch,dinner,chefs_table" help:"Session type."`
	Guests  int    `required:"" help:"Number of guests."`
	Addon   string `default:"none" help:"Add-on package (none, wine_pairing, celebration_cake, private_room, photographer)."`
	JSON    bool   `name:"json" help:"Print JSON instead of a table."`
}

type deriveCmd struct {
	Total  int    `required:"" help:"Total number of guests."`
	Veg    int    `default:"0" help:"Current vegetarian count."`
	NonVeg int    `name:"non-veg" default:"0" help:"Current non-vegetarian count."`
	Edited string `default:"veg" enum:"veg,non-veg" help:"Which count was edited last."`
}

type summaryCmd struct {
	File    string `arg:"" type:"existingfile" help:"Bookings file (YAML or JSON list)."`
	GroupBy string `name:"group-by" enum:"none,date,session" default:"none" help:"Also print bucket sizes by date or session."`
}

func main() {
	ctx := kong.Parse(&cli{},
		kong.Name("bookingctl"),
		kong.Description("Offline pricing and reporting helpers for supper club bookings."),
		kong.UsageOnError(),
	)
	err := ctx.Run(context.Background())
	ctx.FatalIfErrorf(err)
}

func (cmd *quoteCmd) Run(_ context.Context) error {
	if cmd.Guests < models.MinGuests || cmd.Guests > models.MaxGuests {
		return fmt.Errorf("bookingctl: --guests must be between %d and %d", models.MinGuests, models.MaxGuests)
	}
	breakdown := pricing.ComputePrice(models.ParseSessionType(cmd.Session), cmd.Guests, models.ParseAddon(cmd.Addon))
	if cmd.JSON {
		return writeJSON(os.Stdout, breakdown)
	}
	return writeBreakdown(os.Stdout, breakdown)
}

func (cmd *deriveCmd) Run(_ context.Context) error {
	edited := wizard.SubCountVeg
	if cmd.Edited == "non-veg" {
		edited = wizard.SubCountNonVeg
	}
	veg, nonVeg := wizard.DeriveSubCountsFor(edited, cmd.Total, cmd.Veg, cmd.NonVeg)
	fmt.Fprintf(os.Stdout, "veg=%d non_veg=%d\n", veg, nonVeg)
	return nil
}

func (cmd *summaryCmd) Run(_ context.Context) error {
	data, err := os.ReadFile(cmd.File)
	if err != nil {
		return fmt.Errorf("bookingctl: read %s: %w", cmd.File, err)
	}
	records, err := parseRecords(data)
	if err != nil {
		return err
	}

	if err := writeJSON(os.Stdout, aggregate.Summarize(records)); err != nil {
		return err
	}

	var keyFn func(models.BookingRecord) string
	switch cmd.GroupBy {
	case "date":
		keyFn = aggregate.ByDate
	case "session":
		keyFn = aggregate.BySession
	default:
		return nil
	}
	groups := aggregate.GroupByKey(records, keyFn)
	for _, key := range groups.Keys {
		fmt.Fprintf(os.Stdout, "%s\t%d\n", key, len(groups.Get(key)))
	}
	return nil
}

// fileRecord is the on-disk booking shape. JSON is valid YAML, so one
// decoder reads both.
type fileRecord struct {
	ID             string `yaml:"id"`
	Date           string `yaml:"date"`
	SessionType    string `yaml:"session_type"`
	GuestName      string `yaml:"guest_name"`
	NumberOfGuests int    `yaml:"number_of_guests"`
	VegCount       int    `yaml:"veg_count"`
	NonVegCount    int    `yaml:"non_veg_count"`
	Addon          string `yaml:"addon"`
	PaymentStatus  string `yaml:"payment_status"`
	PaymentMethod  string `yaml:"payment_method"`
	Status         string `yaml:"status"`
}

func parseRecords(data []byte) ([]models.BookingRecord, error) {
	var raw []fileRecord
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("bookingctl: parse bookings: %w", err)
	}

	records := make([]models.BookingRecord, 0, len(raw))
	for i, fr := range raw {
		date, err := time.Parse(models.DateLayout, strings.TrimSpace(fr.Date))
		if err != nil {
			return nil, fmt.Errorf("bookingctl: booking %d: invalid date %q", i, fr.Date)
		}
		status := models.ParseBookingStatus(fr.Status)
		if status == models.StatusUnknown {
			status = models.StatusPending
		}
		records = append(records, wizard.Normalize(models.BookingRecord{
			ID:             fr.ID,
			Date:           date,
			SessionType:    models.ParseSessionType(fr.SessionType),
			GuestName:      fr.GuestName,
			NumberOfGuests: fr.NumberOfGuests,
			VegCount:       fr.VegCount,
			NonVegCount:    fr.NonVegCount,
			Addon:          models.ParseAddon(fr.Addon),
			PaymentStatus:  models.ParsePaymentStatus(fr.PaymentStatus),
			PaymentMethod:  models.ParsePaymentMethod(fr.PaymentMethod),
			Status:         status,
		}))
	}
	return records, nil
}

func writeBreakdown(w io.Writer, b models.PriceBreakdown) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	rows := []struct {
		label  string
		amount int64
	}{
		{fmt.Sprintf("%s x %d @ %d", b.SessionType, b.GuestCount, b.UnitPrice), b.Subtotal},
		{"add-on " + b.Addon.String(), b.AddonAmount},
		{"service fee", b.ServiceFee},
		{"tax", b.Tax},
		{"total", b.Total},
	}
	for _, row := range rows {
		fmt.Fprintf(tw, "%s\t%d\t\n", row.label, row.amount)
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
