package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// Header is the canonical CSV column order, written by Export and required
// by Import.
var Header = []string{
	"order_id", "customer_id", "product_name", "category", "price",
	"quantity", "discount_percent", "total_amount", "region",
	"order_status", "payment_method", "order_date", "customer_email",
}

// Export writes orders as CSV (header + one row per order).
func Export(w io.Writer, orders []Order) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("csv: write header: %w", err)
	}
	for i, o := range orders {
		row := []string{
			o.OrderID,
			o.CustomerID,
			o.ProductName,
			o.Category,
			strconv.FormatFloat(o.Price, 'f', 2, 64),
			strconv.Itoa(o.Quantity),
			strconv.FormatFloat(o.DiscountPercent, 'f', 1, 64),
			strconv.FormatFloat(o.TotalAmount, 'f', 2, 64),
			o.Region,
			o.OrderStatus,
			o.PaymentMethod,
			o.OrderDate,
			o.CustomerEmail,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("csv: write row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Import reads orders from CSV data with a header row. Extra columns are
// ignored; all canonical columns must be present. Numeric fields must parse,
// but value-level problems (negative prices, malformed emails, bad dates) are
// accepted here; finding those is the transform stage's job.
func Import(r io.Reader) ([]Order, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	head, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("csv: read header: %w", err)
	}

	idx := make(map[string]int, len(head))
	for i, name := range head {
		idx[strings.ToLower(strings.TrimSpace(name))] = i
	}
	var missing []string
	for _, name := range Header {
		if _, ok := idx[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("csv: missing required columns: %s", strings.Join(missing, ", "))
	}

	var orders []Order
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv: read: %w", err)
		}
		line++

		field := func(name string) string { return rec[idx[name]] }

		price, err := strconv.ParseFloat(field("price"), 64)
		if err != nil {
			return nil, fmt.Errorf("csv: line %d: price %q: %w", line, field("price"), err)
		}
		quantity, err := strconv.Atoi(field("quantity"))
		if err != nil {
			return nil, fmt.Errorf("csv: line %d: quantity %q: %w", line, field("quantity"), err)
		}
		discount, err := strconv.ParseFloat(field("discount_percent"), 64)
		if err != nil {
			return nil, fmt.Errorf("csv: line %d: discount_percent %q: %w", line, field("discount_percent"), err)
		}
		total, err := strconv.ParseFloat(field("total_amount"), 64)
		if err != nil {
			return nil, fmt.Errorf("csv: line %d: total_amount %q: %w", line, field("total_amount"), err)
		}

		orders = append(orders, Order{
			OrderID:         field("order_id"),
			CustomerID:      field("customer_id"),
			ProductName:     field("product_name"),
			Category:        field("category"),
			Price:           price,
			Quantity:        quantity,
			DiscountPercent: discount,
			TotalAmount:     total,
			Region:          field("region"),
			OrderStatus:     field("order_status"),
			PaymentMethod:   field("payment_method"),
			OrderDate:       field("order_date"),
			CustomerEmail:   field("customer_email"),
		})
	}

	if len(orders) == 0 {
		return nil, fmt.Errorf("csv: no data rows")
	}
	return orders, nil
}

// ParseDate parses an order date in the canonical layout.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}
