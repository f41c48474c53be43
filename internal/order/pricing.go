package order

// Fees are the checkout pricing constants.
type Fees struct {
	PlatformFee           int64
	ShippingFee           int64
	FreeShippingThreshold int64
	TaxPercent            int64
}

func DefaultFees() Fees {
	return Fees{
		PlatformFee:           20,
		ShippingFee:           50,
		FreeShippingThreshold: 500,
		TaxPercent:            18,
	}
}

// Price computes the order pricing for a subtotal.
func (f Fees) Price(total, discount int64) Pricing {
	p := Pricing{
		TotalAmount: total,
		PlatformFee: f.PlatformFee,
		ShippingFee: f.ShippingFee,
		Taxes:       ceilPercent(total, f.TaxPercent),
		Discount:    discount,
	}
	if total >= f.FreeShippingThreshold {
		p.ShippingFee = 0
	}
	p.FinalAmount = p.TotalAmount + p.PlatformFee + p.ShippingFee + p.Taxes - p.Discount
	return p
}

// Summarize prices a set of line items.
func (f Fees) Summarize(lines []LineItem, discount int64) Summary {
	var total int64
	count := 0
	for _, li := range lines {
		total += li.Subtotal()
		count += li.Quantity
	}
	return Summary{Pricing: f.Price(total, discount), ItemCount: count}
}

// ceilPercent returns ceil(amount * pct / 100) for non-negative inputs.
func ceilPercent(amount, pct int64) int64 {
	if amount <= 0 || pct <= 0 {
		return 0
	}
	return (amount*pct + 99) / 100
}
