package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/bwmarrin/snowflake"
)

const codeCharset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// GenerateCode returns a random code of the given length drawn from an
// unambiguous uppercase alphabet
func GenerateCode(length int) (string, error) {
	result := make([]byte, length)
	max := big.NewInt(int64(len(codeCharset)))

	for i := range result {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate code: %w", err)
		}
		result[i] = codeCharset[n.Int64()]
	}

	return string(result), nil
}

// GenerateAccessCode creates a certificate access code such as CERT-7KQ2-M9XH
func GenerateAccessCode() (string, error) {
	code, err := GenerateCode(8)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("CERT-%s-%s", code[:4], code[4:]), nil
}

// TransactionIDGenerator issues fallback payout transaction references
type TransactionIDGenerator struct {
	node *snowflake.Node
}

// NewTransactionIDGenerator creates a generator for the given snowflake node
func NewTransactionIDGenerator(nodeID int64) (*TransactionIDGenerator, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to create snowflake node: %w", err)
	}
	return &TransactionIDGenerator{node: node}, nil
}

// Next returns a reference of the form TXN-<snowflake id>
func (g *TransactionIDGenerator) Next() string {
	return "TXN-" + g.node.Generate().String()
}
