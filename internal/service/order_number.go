package service

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dukani-next/internal/payment/mpesa"

	"github.com/bwmarrin/snowflake"
)

const orderNoPrefix = "DK"

// OrderNumberGenerator issues unique order numbers: DK + YYYYMMDD (Nairobi) + base36 snowflake id
type OrderNumberGenerator struct {
	node *snowflake.Node
	now  func() time.Time
}

var (
	defaultOrderNumbers     *OrderNumberGenerator
	defaultOrderNumbersOnce sync.Once
)

// NewOrderNumberGenerator node must be unique per running process (0-1023)
func NewOrderNumberGenerator(nodeID int64) (*OrderNumberGenerator, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOrderNoGenerate, err)
	}
	return &OrderNumberGenerator{node: node, now: time.Now}, nil
}

func defaultOrderNumberGenerator() *OrderNumberGenerator {
	defaultOrderNumbersOnce.Do(func() {
		gen, err := NewOrderNumberGenerator(1)
		if err != nil {
			panic(err)
		}
		defaultOrderNumbers = gen
	})
	return defaultOrderNumbers
}

// Next returns a new order number; safe for concurrent use
func (g *OrderNumberGenerator) Next() string {
	id := g.node.Generate()
	return orderNoPrefix + g.now().In(mpesa.EAT).Format("20060102") + strings.ToUpper(id.Base36())
}
