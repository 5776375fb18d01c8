package streamwatch

import (
	"fmt"

	dyntypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/dynamodbstreams/types"
)

// toTableMap converts stream attribute values into their DynamoDB table
// counterparts. The two services model the same wire shapes as distinct Go
// types.
func toTableMap(in map[string]types.AttributeValue) (map[string]dyntypes.AttributeValue, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make(map[string]dyntypes.AttributeValue, len(in))
	for k, v := range in {
		av, err := toTableAttribute(v)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", k, err)
		}
		out[k] = av
	}
	return out, nil
}

func toTableAttribute(v types.AttributeValue) (dyntypes.AttributeValue, error) {
	switch tv := v.(type) {
	case *types.AttributeValueMemberS:
		return &dyntypes.AttributeValueMemberS{Value: tv.Value}, nil
	case *types.AttributeValueMemberN:
		return &dyntypes.AttributeValueMemberN{Value: tv.Value}, nil
	case *types.AttributeValueMemberBOOL:
		return &dyntypes.AttributeValueMemberBOOL{Value: tv.Value}, nil
	case *types.AttributeValueMemberNULL:
		return &dyntypes.AttributeValueMemberNULL{Value: tv.Value}, nil
	case *types.AttributeValueMemberB:
		return &dyntypes.AttributeValueMemberB{Value: tv.Value}, nil
	case *types.AttributeValueMemberSS:
		return &dyntypes.AttributeValueMemberSS{Value: tv.Value}, nil
	case *types.AttributeValueMemberNS:
		return &dyntypes.AttributeValueMemberNS{Value: tv.Value}, nil
	case *types.AttributeValueMemberBS:
		return &dyntypes.AttributeValueMemberBS{Value: tv.Value}, nil
	case *types.AttributeValueMemberL:
		list := make([]dyntypes.AttributeValue, 0, len(tv.Value))
		for i, item := range tv.Value {
			av, err := toTableAttribute(item)
			if err != nil {
				return nil, fmt.Errorf("list index %d: %w", i, err)
			}
			list = append(list, av)
		}
		return &dyntypes.AttributeValueMemberL{Value: list}, nil
	case *types.AttributeValueMemberM:
		m, err := toTableMap(tv.Value)
		if err != nil {
			return nil, err
		}
		if m == nil {
			m = map[string]dyntypes.AttributeValue{}
		}
		return &dyntypes.AttributeValueMemberM{Value: m}, nil
	default:
		return nil, fmt.Errorf("unsupported stream attribute %T", v)
	}
}
