package seed

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// FirstGeneratedOrderID leaves room below it for the fixed sample orders.
const FirstGeneratedOrderID = 2000

type product struct {
	name      string
	sku       string
	unitPrice float64
	weight    float64
}

type buyer struct {
	firstName  string
	lastName   string
	city       string
	postalCode string
}

var (
	catalog = []product{
		{name: "Laptop", sku: "LAP001", unitPrice: 999.99, weight: 2.5},
		{name: "Smartphone", sku: "PHN001", unitPrice: 699.99, weight: 0.5},
		{name: "Headphones", sku: "AUD001", unitPrice: 199.99, weight: 0.4},
		{name: "Monitor", sku: "MON001", unitPrice: 249.5, weight: 4.2},
		{name: "Keyboard", sku: "KEY001", unitPrice: 79.9, weight: 0.9},
		{name: "Paper", sku: "PAP001", unitPrice: 5.25, weight: 1.1},
	}
	buyers = []buyer{
		{firstName: "John", lastName: "Doe", city: "New York", postalCode: "10001"},
		{firstName: "Jane", lastName: "Smith", city: "Los Angeles", postalCode: "90001"},
		{firstName: "Bob", lastName: "Johnson", city: "Chicago", postalCode: "60601"},
		{firstName: "Alice", lastName: "Brown", city: "Seattle", postalCode: "98101"},
		{firstName: "Carlos", lastName: "Diaz", city: "Austin", postalCode: "73301"},
	}
	channels      = []string{"Website", "Instagram", "Facebook"}
	paymentModes  = []string{"Prepaid", "COD"}
	partnerTypes  = []string{"LITTLE", "UBER"}
	drivers       = []string{"Sam", "Priya", "Mateo", "Chen"}
	warehouseName = []string{"Main Warehouse", "East Hub", "West Hub"}
)

// SampleOrders returns the three reference orders every demo database starts
// with.
func SampleOrders(now time.Time) []bson.D {
	return []bson.D{
		sampleOrder(1001, "DELIVERED", "SUCCESS", "user123",
			buyer{firstName: "John", lastName: "Doe", city: "New York", postalCode: "10001"},
			catalog[0], 1, "Prepaid", "Website", 1099.99, 2.5, now),
		sampleOrder(1002, "DELIVERED", "SUCCESS", "user456",
			buyer{firstName: "Jane", lastName: "Smith", city: "Los Angeles", postalCode: "90001"},
			catalog[1], 1, "Prepaid", "Instagram", 769.99, 0.5, now),
		sampleOrder(1003, "PENDING", "PENDING", "user789",
			buyer{firstName: "Bob", lastName: "Johnson", city: "Chicago", postalCode: "60601"},
			catalog[2], 2, "COD", "Facebook", 439.98, 0.8, now),
	}
}

func sampleOrder(orderID int, status, paymentStatus, userID string, b buyer, p product, quantity int, paymentMode, channel string, total, weight float64, now time.Time) bson.D {
	return bson.D{
		{Key: "orderId", Value: orderID},
		{Key: "status", Value: status},
		{Key: "paymentStatus", Value: paymentStatus},
		{Key: "userId", Value: userID},
		{Key: "buyerDetails", Value: bson.D{{Key: "permanentAddress", Value: address(b)}}},
		{Key: "orderDetails", Value: bson.D{
			{Key: "products", Value: bson.A{productLine(p, quantity)}},
			{Key: "orderDate", Value: now},
			{Key: "paymentMode", Value: paymentMode},
			{Key: "orderChannel", Value: channel},
			{Key: "totalPrice", Value: total},
			{Key: "totalWeight", Value: weight},
		}},
		{Key: "createdAt", Value: now},
		{Key: "updatedAt", Value: now},
	}
}

func address(b buyer) bson.D {
	return bson.D{
		{Key: "firstName", Value: b.firstName},
		{Key: "lastName", Value: b.lastName},
		{Key: "emailId", Value: fmt.Sprintf("%s.%s@example.com", strings.ToLower(b.firstName), strings.ToLower(b.lastName))},
		{Key: "city", Value: b.city},
		{Key: "country", Value: "USA"},
		{Key: "postalCode", Value: b.postalCode},
	}
}

func productLine(p product, quantity int) bson.D {
	return bson.D{
		{Key: "productName", Value: p.name},
		{Key: "sku", Value: p.sku},
		{Key: "taxRate", Value: 0.1},
		{Key: "unitPrice", Value: p.unitPrice},
		{Key: "quantity", Value: quantity},
	}
}

// Generator produces pseudo-random orders. The same seed and clock yield the
// same sequence.
type Generator struct {
	rnd      *rand.Rand
	sequence int
	now      func() time.Time
}

func NewGenerator(seed int64) *Generator {
	return &Generator{
		rnd: rand.New(rand.NewSource(seed)),
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (g *Generator) NextOrder() bson.D {
	orderID := FirstGeneratedOrderID + g.sequence
	g.sequence++

	createdAt := g.now().Add(-time.Duration(g.rnd.Intn(90*24)) * time.Hour)
	b := buyers[g.rnd.Intn(len(buyers))]

	lines := bson.A{}
	total := 0.0
	weight := 0.0
	for i := 0; i < 1+g.rnd.Intn(3); i++ {
		p := catalog[g.rnd.Intn(len(catalog))]
		quantity := 1 + g.rnd.Intn(4)
		lines = append(lines, productLine(p, quantity))
		total += p.unitPrice * float64(quantity) * 1.1
		weight += p.weight * float64(quantity)
	}

	status, paymentStatus := g.pickStatus()
	paymentMode := pickOne(g.rnd, paymentModes)
	if paymentMode == "COD" && paymentStatus == "SUCCESS" && status != "DELIVERED" {
		paymentStatus = "PENDING"
	}
	partnerCost := round2(40 + g.rnd.Float64()*160)
	commission := float64(5 + g.rnd.Intn(11))

	return bson.D{
		{Key: "orderId", Value: orderID},
		{Key: "status", Value: status},
		{Key: "paymentStatus", Value: paymentStatus},
		{Key: "userId", Value: fmt.Sprintf("user%03d", 100+g.rnd.Intn(900))},
		{Key: "buyerDetails", Value: bson.D{{Key: "permanentAddress", Value: address(b)}}},
		{Key: "pickupDetails", Value: bson.D{
			{Key: "firstName", Value: "Dispatch"},
			{Key: "city", Value: b.city},
			{Key: "warehouseAddressName", Value: pickOne(g.rnd, warehouseName)},
		}},
		{Key: "orderDetails", Value: bson.D{
			{Key: "products", Value: lines},
			{Key: "orderDate", Value: createdAt},
			{Key: "paymentMode", Value: paymentMode},
			{Key: "orderChannel", Value: pickOne(g.rnd, channels)},
			{Key: "totalPrice", Value: round2(total)},
			{Key: "totalWeight", Value: round2(weight)},
		}},
		{Key: "estimatedDeliveryPartnerCost", Value: partnerCost},
		{Key: "orderTrackingData", Value: bson.D{
			{Key: "partnerType", Value: pickOne(g.rnd, partnerTypes)},
			{Key: "orderData", Value: bson.D{
				{Key: "distance", Value: fmt.Sprintf("%.1f", 1+g.rnd.Float64()*25)},
				{Key: "time", Value: fmt.Sprintf("%d", 10+g.rnd.Intn(80))},
				{Key: "driver", Value: bson.D{{Key: "name", Value: pickOne(g.rnd, drivers)}}},
			}},
		}},
		{Key: "partnerCostWithCommission", Value: round2(partnerCost * (1 + commission/100))},
		{Key: "percentageCommission", Value: commission},
		{Key: "actualCostToPayPartner", Value: round2(partnerCost * 0.95)},
		{Key: "createdAt", Value: createdAt},
		{Key: "updatedAt", Value: createdAt.Add(time.Duration(g.rnd.Intn(72)) * time.Hour)},
	}
}

func (g *Generator) pickStatus() (string, string) {
	p := g.rnd.Intn(100)
	switch {
	case p < 45:
		return "DELIVERED", "SUCCESS"
	case p < 65:
		return "SHIPPED", "SUCCESS"
	case p < 80:
		return "PROCESSING", "SUCCESS"
	case p < 95:
		return "PENDING", "PENDING"
	default:
		return "PENDING", "FAILED"
	}
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}

func pickOne(r *rand.Rand, values []string) string {
	return values[r.Intn(len(values))]
}

