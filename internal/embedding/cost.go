package embedding

// costPerToken stores USD per 1K input tokens for known embedding models.
var costPerToken = map[string]float64{
	"text-embedding-ada-002": 0.0001,
	"text-embedding-3-small": 0.00002,
	"text-embedding-3-large": 0.00013,
}

func CalculateCost(model string, tokens int) float64 {
	price, ok := costPerToken[model]
	if !ok {
		return 0
	}
	return float64(tokens) / 1000.0 * price
}
