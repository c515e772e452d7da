package schema

var mongoExamples = []string{
	"Show total revenue for each order channel.",
	"What is the total quantity of 'Paper' sold?",
	"List orders with status 'DELIVERED'.",
	"What is the average totalPrice for orders from 'Instagram'?",
	"Which city has the most orders for buyerDetails?",
	"Count orders by paymentStatus.",
	"Show product names and quantities for orderId 1.",
	"What are the top 5 products by total quantity sold?",
	"Show all orders created yesterday.",
	"List all orders with a totalPrice greater than 500.",
	"What is the total estimated delivery partner cost for 'LITTLE' partner type?",
	"Show the status of orderId 1.",
}

var sqlExamples = []string{
	"Show total revenue for each region.",
	"What is the total quantity of 'Paper' sold?",
	"List all sales made by 'John Doe'.",
	"What is the average unit price per product?",
	"Which customer bought the most units?",
	"Count sales by region.",
	"What are the top 5 products by total quantity sold?",
	"Show daily revenue for the last 30 days.",
	"List all sales with a unit price greater than 500.",
}

var mongoSummary = []string{
	"_id: ObjectId (primary key)",
	"orderId: number (unique order id)",
	"paymentStatus: string (e.g. SUCCESS, PENDING)",
	"status: string (e.g. DELIVERED, SHIPPED)",
	"userId: string",
	"buyerDetails.permanentAddress.city: string",
	"buyerDetails.permanentAddress.country: string",
	"createdAt: ISODate (order creation timestamp)",
	"orderDetails.orderDate: ISODate (date of order placement)",
	"orderDetails.products: array (productName, quantity, unitPrice)",
	"orderDetails.orderChannel: string (e.g. Instagram)",
	"orderDetails.totalPrice: number (total order value)",
	"orderDetails.paymentMode: string",
}

var sqlSummary = []string{
	"sale_id: int (primary key)",
	"product_name: varchar",
	"quantity: int",
	"unit_price: decimal",
	"sale_date: date",
	"customer_name: varchar",
	"region: varchar (North, South, East, West)",
}

// Examples returns the canned example questions offered next to the free-text
// question input.
func Examples(variant Variant) []string {
	switch variant {
	case VariantSQL:
		return append([]string(nil), sqlExamples...)
	case VariantMongo:
		return append([]string(nil), mongoExamples...)
	default:
		return nil
	}
}

func Summary(variant Variant) []string {
	switch variant {
	case VariantSQL:
		return append([]string(nil), sqlSummary...)
	case VariantMongo:
		return append([]string(nil), mongoSummary...)
	default:
		return nil
	}
}
