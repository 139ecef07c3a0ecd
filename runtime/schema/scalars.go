package schema

import (
	"math"
	"math/big"
	"strconv"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"
)

// BigInt carries arbitrary precision integers as decimal strings.
var BigInt = graphql.NewScalar(graphql.ScalarConfig{
	Name:        "BigInt",
	Description: "Arbitrary precision integer serialized as a decimal string",
	Serialize:   serializeBigInt,
	ParseValue:  parseBigInt,
	ParseLiteral: func(valueAST ast.Value) interface{} {
		switch v := valueAST.(type) {
		case *ast.IntValue:
			return parseBigInt(v.Value)
		case *ast.StringValue:
			return parseBigInt(v.Value)
		default:
			return nil
		}
	},
})

func serializeBigInt(value interface{}) interface{} {
	switch v := value.(type) {
	case *big.Int:
		if v == nil {
			return nil
		}
		return v.String()
	case big.Int:
		return v.String()
	case int:
		return strconv.Itoa(v)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return nil
		}
		n, _ := big.NewFloat(v).Int(nil)
		return n.String()
	case string:
		if n := parseBigInt(v); n != nil {
			return n.(*big.Int).String()
		}
		return nil
	default:
		return nil
	}
}

// parseBigInt returns a *big.Int, or nil when value is not an integer.
func parseBigInt(value interface{}) interface{} {
	switch v := value.(type) {
	case string:
		n, ok := new(big.Int).SetString(v, 10)
		if !ok {
			return nil
		}
		return n
	case int:
		return big.NewInt(int64(v))
	case int64:
		return big.NewInt(v)
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return nil
		}
		n, _ := big.NewFloat(v).Int(nil)
		return n
	default:
		return nil
	}
}
