package keywords

var stopwords = map[string]struct{}{
	"너무": {}, "진짜": {}, "정말": {}, "그냥": {}, "근데": {}, "그리고": {},
	"이거": {}, "저거": {}, "거": {}, "좀": {}, "같다": {}, "하다": {},
	"되다": {}, "있다": {}, "없다": {}, "이다": {}, "것": {}, "수": {},
	"때": {}, "듯": {}, "처럼": {}, "요": {}, "에서": {}, "으로": {},
	"에게": {}, "하고": {}, "하면": {}, "했는데": {}, "하는데": {},
}

// particles are stripped from token tails, longest first.
var particles = []string{
	"에서는", "으로는", "이랑", "에서", "으로", "에게", "한테", "까지", "부터", "처럼", "보다",
	"은", "는", "이", "가", "을", "를", "에", "의", "도", "로", "와", "과", "랑", "만",
}

// IsStopword reports whether token is filtered out regardless of frequency.
func IsStopword(token string) bool {
	_, ok := stopwords[token]
	return ok
}
