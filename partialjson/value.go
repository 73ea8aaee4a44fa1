package partialjson

// Kind 表示 JSON 值的类型。
type Kind int

const (
	Null Kind = iota
	Bool
	Number
	String
	Array
	Object
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Bool:
		return "bool"
	case Number:
		return "number"
	case String:
		return "string"
	case Array:
		return "array"
	case Object:
		return "object"
	default:
		return "unknown"
	}
}

// Member 是对象中的一个键值对，保留原始出现顺序。
type Member struct {
	Key   string
	Value Value
}

// Value 是解码后的 JSON 值。
//
// 与 map 不同，Object 保留键的原始顺序，这样重新序列化的文本与模型输出的顺序一致。
// Complete 为 false 表示该值因输入截断而被隐式闭合，后续输入仍可能让它继续增长。
type Value struct {
	Kind Kind
	Bool bool
	// Text 对 String 是解码后的内容，对 Number 是原始字面量。
	Text     string
	Items    []Value
	Members  []Member
	Complete bool
}

// Get 按键查找对象成员；存在重复键时返回最后一个。
func (v Value) Get(key string) (Value, bool) {
	if v.Kind != Object {
		return Value{}, false
	}
	for i := len(v.Members) - 1; i >= 0; i-- {
		if v.Members[i].Key == key {
			return v.Members[i].Value, true
		}
	}
	return Value{}, false
}

// DuplicateKey 返回 v 及其子值中第一个在同一对象内重复出现的键。
func (v Value) DuplicateKey() (string, bool) {
	switch v.Kind {
	case Array:
		for _, item := range v.Items {
			if key, ok := item.DuplicateKey(); ok {
				return key, true
			}
		}
	case Object:
		seen := make(map[string]struct{}, len(v.Members))
		for _, m := range v.Members {
			if _, ok := seen[m.Key]; ok {
				return m.Key, true
			}
			seen[m.Key] = struct{}{}
			if key, ok := m.Value.DuplicateKey(); ok {
				return key, true
			}
		}
	}
	return "", false
}

// IsCompleteString 判断值是否为已经闭合的字符串。
func (v Value) IsCompleteString() bool {
	return v.Kind == String && v.Complete
}
