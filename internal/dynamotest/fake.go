// Package dynamotest provides an in-memory DynamoDB fake for unit tests. It
// understands the small expression dialect the stores in this module emit:
// SET assignments on (nested) paths, and conditions built from
// attribute_exists, attribute_not_exists, "=" and "<" joined by AND or OR.
package dynamotest

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Item is a stored DynamoDB item.
type Item = map[string]types.AttributeValue

type table struct {
	keyAttr   string
	streamArn string
	items     map[string]Item
}

// Fake is an in-memory implementation of the DynamoDB calls used in this module.
type Fake struct {
	mu     sync.Mutex
	tables map[string]*table

	// UpdateErr, when set, is consulted before every UpdateItem. A non-nil
	// return value is returned to the caller and nothing is written.
	UpdateErr func(in *dyn.UpdateItemInput) error

	PutCalls    int
	GetCalls    int
	UpdateCalls int
}

// New returns an empty Fake.
func New() *Fake {
	return &Fake{tables: map[string]*table{}}
}

// CreateTable registers a table whose partition key is keyAttr.
func (f *Fake) CreateTable(name, keyAttr, streamArn string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tables[name] = &table{keyAttr: keyAttr, streamArn: streamArn, items: map[string]Item{}}
}

// Seed stores item verbatim, bypassing conditions.
func (f *Fake) Seed(tableName string, item Item) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := f.tables[tableName]
	t.items[keyString(item[t.keyAttr])] = item
}

// Get returns the live stored item (not a copy) for a string key, or nil.
func (f *Fake) Get(tableName, key string) Item {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tables[tableName]
	if !ok {
		return nil
	}
	return t.items[key]
}

// Writes reports PutItem plus UpdateItem calls.
func (f *Fake) Writes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.PutCalls + f.UpdateCalls
}

func (f *Fake) lookup(name *string) (*table, error) {
	t, ok := f.tables[sdkaws.ToString(name)]
	if !ok {
		return nil, &types.ResourceNotFoundException{Message: sdkaws.String("table not found: " + sdkaws.ToString(name))}
	}
	return t, nil
}

func (f *Fake) PutItem(ctx context.Context, in *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.PutCalls++
	t, err := f.lookup(in.TableName)
	if err != nil {
		return nil, err
	}
	kv, ok := in.Item[t.keyAttr]
	if !ok {
		return nil, errors.New("put item: missing partition key " + t.keyAttr)
	}
	k := keyString(kv)
	existing := t.items[k]
	if in.ConditionExpression != nil {
		ok, err := evalCondition(*in.ConditionExpression, existing, in.ExpressionAttributeNames, in.ExpressionAttributeValues)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, conditionFailed()
		}
	}
	t.items[k] = copyItem(in.Item)
	return &dyn.PutItemOutput{}, nil
}

func (f *Fake) GetItem(ctx context.Context, in *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.GetCalls++
	t, err := f.lookup(in.TableName)
	if err != nil {
		return nil, err
	}
	item, ok := t.items[keyString(in.Key[t.keyAttr])]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: copyItem(item)}, nil
}

func (f *Fake) UpdateItem(ctx context.Context, in *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.UpdateCalls++
	if f.UpdateErr != nil {
		if err := f.UpdateErr(in); err != nil {
			return nil, err
		}
	}
	t, err := f.lookup(in.TableName)
	if err != nil {
		return nil, err
	}
	kv, ok := in.Key[t.keyAttr]
	if !ok {
		return nil, errors.New("update item: missing partition key " + t.keyAttr)
	}
	k := keyString(kv)
	existing := t.items[k]
	if in.ConditionExpression != nil {
		ok, err := evalCondition(*in.ConditionExpression, existing, in.ExpressionAttributeNames, in.ExpressionAttributeValues)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, conditionFailed()
		}
	}

	item := copyItem(existing)
	if item == nil {
		item = Item{t.keyAttr: kv}
	}
	if err := applySet(sdkaws.ToString(in.UpdateExpression), item, in.ExpressionAttributeNames, in.ExpressionAttributeValues); err != nil {
		return nil, err
	}
	t.items[k] = item
	return &dyn.UpdateItemOutput{Attributes: copyItem(item)}, nil
}

func (f *Fake) DescribeTable(ctx context.Context, in *dyn.DescribeTableInput, optFns ...func(*dyn.Options)) (*dyn.DescribeTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, err := f.lookup(in.TableName)
	if err != nil {
		return nil, err
	}
	desc := &types.TableDescription{TableName: in.TableName}
	if t.streamArn != "" {
		desc.LatestStreamArn = sdkaws.String(t.streamArn)
	}
	return &dyn.DescribeTableOutput{Table: desc}, nil
}

func conditionFailed() error {
	return &types.ConditionalCheckFailedException{Message: sdkaws.String("The conditional request failed")}
}

func keyString(av types.AttributeValue) string {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return v.Value
	case *types.AttributeValueMemberN:
		return v.Value
	default:
		return fmt.Sprintf("%v", av)
	}
}

func copyItem(in Item) Item {
	if in == nil {
		return nil
	}
	out := make(Item, len(in))
	for k, v := range in {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(av types.AttributeValue) types.AttributeValue {
	if m, ok := av.(*types.AttributeValueMemberM); ok {
		return &types.AttributeValueMemberM{Value: copyItem(m.Value)}
	}
	return av
}

func resolvePath(expr string, names map[string]string) []string {
	parts := strings.Split(strings.TrimSpace(expr), ".")
	for i, p := range parts {
		if n, ok := names[p]; ok {
			parts[i] = n
		}
	}
	return parts
}

func getPath(item Item, path []string) (types.AttributeValue, bool) {
	cur := item
	for i, p := range path {
		v, ok := cur[p]
		if !ok {
			return nil, false
		}
		if i == len(path)-1 {
			return v, true
		}
		m, ok := v.(*types.AttributeValueMemberM)
		if !ok {
			return nil, false
		}
		cur = m.Value
	}
	return nil, false
}

func applySet(expr string, item Item, names map[string]string, values map[string]types.AttributeValue) error {
	body, ok := strings.CutPrefix(strings.TrimSpace(expr), "SET ")
	if !ok {
		return fmt.Errorf("unsupported update expression %q", expr)
	}
	for _, assign := range strings.Split(body, ",") {
		lhs, rhs, ok := strings.Cut(assign, "=")
		if !ok {
			return fmt.Errorf("bad assignment %q", assign)
		}
		val, ok := values[strings.TrimSpace(rhs)]
		if !ok {
			return fmt.Errorf("missing value %q", strings.TrimSpace(rhs))
		}
		path := resolvePath(lhs, names)
		parent := item
		for _, p := range path[:len(path)-1] {
			m, ok := parent[p].(*types.AttributeValueMemberM)
			if !ok {
				return &validationError{msg: "The document path provided in the update expression is invalid for update"}
			}
			parent = m.Value
		}
		parent[path[len(path)-1]] = copyValue(val)
	}
	return nil
}

func evalCondition(expr string, item Item, names map[string]string, values map[string]types.AttributeValue) (bool, error) {
	if clauses := strings.Split(expr, " OR "); len(clauses) > 1 {
		for _, c := range clauses {
			ok, err := evalClause(c, item, names, values)
			if err != nil || ok {
				return ok, err
			}
		}
		return false, nil
	}
	for _, c := range strings.Split(expr, " AND ") {
		ok, err := evalClause(c, item, names, values)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func evalClause(clause string, item Item, names map[string]string, values map[string]types.AttributeValue) (bool, error) {
	clause = strings.TrimSpace(clause)
	if arg, ok := strings.CutPrefix(clause, "attribute_exists("); ok {
		_, found := getPath(item, resolvePath(strings.TrimSuffix(arg, ")"), names))
		return found, nil
	}
	if arg, ok := strings.CutPrefix(clause, "attribute_not_exists("); ok {
		_, found := getPath(item, resolvePath(strings.TrimSuffix(arg, ")"), names))
		return !found, nil
	}
	for _, op := range []string{" < ", " = "} {
		lhs, rhs, ok := strings.Cut(clause, op)
		if !ok {
			continue
		}
		cur, found := getPath(item, resolvePath(lhs, names))
		if !found {
			return false, nil
		}
		want, ok := values[strings.TrimSpace(rhs)]
		if !ok {
			return false, fmt.Errorf("missing value %q", strings.TrimSpace(rhs))
		}
		cmp, err := compare(cur, want)
		if err != nil {
			return false, err
		}
		if op == " < " {
			return cmp < 0, nil
		}
		return cmp == 0, nil
	}
	return false, fmt.Errorf("unsupported condition %q", clause)
}

func compare(a, b types.AttributeValue) (int, error) {
	switch av := a.(type) {
	case *types.AttributeValueMemberN:
		bv, ok := b.(*types.AttributeValueMemberN)
		if !ok {
			return 0, errors.New("type mismatch in comparison")
		}
		x, okx := new(big.Float).SetString(av.Value)
		y, oky := new(big.Float).SetString(bv.Value)
		if !okx || !oky {
			return 0, errors.New("invalid number in comparison")
		}
		return x.Cmp(y), nil
	case *types.AttributeValueMemberS:
		bv, ok := b.(*types.AttributeValueMemberS)
		if !ok {
			return 0, errors.New("type mismatch in comparison")
		}
		return strings.Compare(av.Value, bv.Value), nil
	default:
		return 0, fmt.Errorf("unsupported comparison type %T", a)
	}
}

// validationError mimics the ValidationException DynamoDB returns for
// assignments under a missing map.
type validationError struct{ msg string }

func (e *validationError) Error() string     { return "ValidationException: " + e.msg }
func (e *validationError) ErrorCode() string { return "ValidationException" }
