package dataset

import (
	"fmt"
	"math"
	"math/rand"
	"time"
)

// DateLayout is the wire format for order dates.
const DateLayout = "2006-01-02"

// historyDays is how far back order dates are spread.
const historyDays = 180

// Order is one raw e-commerce order record as produced by the extract stage.
type Order struct {
	OrderID         string  `json:"order_id"`
	CustomerID      string  `json:"customer_id"`
	ProductName     string  `json:"product_name"`
	Category        string  `json:"category"`
	Price           float64 `json:"price"`
	Quantity        int     `json:"quantity"`
	DiscountPercent float64 `json:"discount_percent"`
	TotalAmount     float64 `json:"total_amount"`
	Region          string  `json:"region"`
	OrderStatus     string  `json:"order_status"`
	PaymentMethod   string  `json:"payment_method"`
	OrderDate       string  `json:"order_date"` // YYYY-MM-DD
	CustomerEmail   string  `json:"customer_email"`
}

// Categories is the fixed set of product categories.
var Categories = []string{
	"Electronics", "Clothing", "Home & Garden", "Sports & Outdoors",
	"Books & Media", "Automotive", "Health & Beauty", "Toys & Games",
	"Food & Beverages", "Office Supplies", "Jewelry", "Pet Supplies",
}

// Regions is the fixed set of sales regions.
var Regions = []string{
	"North America", "Europe", "Asia", "South America", "Africa", "Oceania",
}

// Statuses is the fixed set of order statuses.
var Statuses = []string{
	"Completed", "Pending", "Cancelled", "Returned", "Processing", "Shipped",
}

// PaymentMethods is the fixed set of payment methods.
var PaymentMethods = []string{
	"Card", "Bank Transfer", "Mobile Money", "Cash on Delivery",
}

// priceRanges gives each category a plausible [min, max] price band.
var priceRanges = map[string][2]float64{
	"Electronics":       {50, 1500},
	"Clothing":          {20, 300},
	"Home & Garden":     {30, 800},
	"Sports & Outdoors": {25, 500},
	"Books & Media":     {5, 100},
	"Automotive":        {100, 2000},
	"Health & Beauty":   {15, 200},
	"Toys & Games":      {10, 150},
	"Food & Beverages":  {5, 50},
	"Office Supplies":   {10, 300},
	"Jewelry":           {50, 1000},
	"Pet Supplies":      {15, 200},
}

var productPrefixes = []string{
	"Premium", "Standard", "Deluxe", "Pro", "Basic", "Ultra", "Smart", "Classic",
}

var productTypes = []string{
	"Phone", "Laptop", "Shirt", "Shoes", "Book", "Watch", "Bag", "Headset",
}

var emailDomains = []string{
	"gmail.com", "yahoo.com", "outlook.com", "company.com",
}

// Options controls one generation run.
type Options struct {
	// Records is the number of orders to generate.
	Records int

	// Seed seeds the random source. Zero or negative means seed from the
	// current time, giving a fresh dataset every run.
	Seed int64

	// InvalidEmailPct is the share of records (0–100) that get a malformed
	// email address. The transform stage flags these.
	InvalidEmailPct float64

	// InvalidPricePct is the share of records (0–100) that get a negative price.
	InvalidPricePct float64
}

// Generator produces the toy e-commerce sample dataset.
type Generator struct {
	opts Options
	now  func() time.Time // injectable for deterministic tests
}

// New creates a Generator with the given options.
func New(opts Options) *Generator {
	return &Generator{opts: opts, now: time.Now}
}

// Generate returns opts.Records freshly generated orders. A share of the
// records is deliberately dirty (invalid emails and negative prices) so the
// quality checks in the transform stage have something to find.
func (g *Generator) Generate() []Order {
	seed := g.opts.Seed
	if seed <= 0 {
		seed = g.now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	start := g.now().AddDate(0, 0, -historyDays)
	orders := make([]Order, 0, g.opts.Records)

	for i := 0; i < g.opts.Records; i++ {
		category := Categories[rng.Intn(len(Categories))]
		band := priceRanges[category]
		price := round2(band[0] + rng.Float64()*(band[1]-band[0]))
		if rng.Float64()*100 < g.opts.InvalidPricePct {
			price = -price
		}

		quantity := rng.Intn(8) + 1
		discount := discountFor(rng, quantity)

		// Total is computed from the absolute price so dirty records still
		// carry a plausible amount, matching what an upstream system with a
		// sign bug would emit.
		subtotal := math.Abs(price) * float64(quantity)
		total := round2(subtotal * (1 - discount/100))

		orderDate := start.AddDate(0, 0, rng.Intn(historyDays+1))

		orders = append(orders, Order{
			OrderID:         fmt.Sprintf("ORD-%d", 1000+i),
			CustomerID:      fmt.Sprintf("CUST-%d", rng.Intn(500)+1),
			ProductName:     productName(rng),
			Category:        category,
			Price:           price,
			Quantity:        quantity,
			DiscountPercent: discount,
			TotalAmount:     total,
			Region:          Regions[rng.Intn(len(Regions))],
			OrderStatus:     Statuses[rng.Intn(len(Statuses))],
			PaymentMethod:   PaymentMethods[rng.Intn(len(PaymentMethods))],
			OrderDate:       orderDate.Format(DateLayout),
			CustomerEmail:   g.email(rng, i),
		})
	}

	return orders
}

// discountFor applies the quantity-driven discount ladder: bigger baskets get
// bigger discounts, small baskets usually get none.
func discountFor(rng *rand.Rand, quantity int) float64 {
	switch {
	case quantity > 5:
		return round1(10 + rng.Float64()*15)
	case quantity > 3:
		return round1(5 + rng.Float64()*10)
	case rng.Float64() < 0.3:
		return round1(rng.Float64() * 10)
	default:
		return 0
	}
}

func productName(rng *rand.Rand) string {
	return fmt.Sprintf("%s %s %d",
		productPrefixes[rng.Intn(len(productPrefixes))],
		productTypes[rng.Intn(len(productTypes))],
		100+rng.Intn(900),
	)
}

func (g *Generator) email(rng *rand.Rand, index int) string {
	if rng.Float64()*100 < g.opts.InvalidEmailPct {
		return fmt.Sprintf("invalid-email-%d", index)
	}
	return fmt.Sprintf("customer%d@%s", index, emailDomains[rng.Intn(len(emailDomains))])
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round1(v float64) float64 { return math.Round(v*10) / 10 }
