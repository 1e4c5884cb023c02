package poll

// Symbol is the marker participants pick to answer a poll.
type Symbol string

const (
	SymbolAgree    Symbol = "👍"
	SymbolDisagree Symbol = "👎"
)

// MaxOptions is the size of the numbered catalog.
const MaxOptions = 10

// Catalog holds the numbered symbols for enumerated polls. Catalog[i] labels option i.
var Catalog = [MaxOptions]Symbol{
	"1️⃣",
	"2️⃣",
	"3️⃣",
	"4️⃣",
	"5️⃣",
	"6️⃣",
	"7️⃣",
	"8️⃣",
	"9️⃣",
	"🔟",
}

var binarySymbols = [2]Symbol{SymbolAgree, SymbolDisagree}

// SymbolsFor returns the symbol slots for a poll with the given options:
// agree/disagree when there are none, otherwise one catalog entry per option
// in the same order. It returns nil if there are more options than symbols.
func SymbolsFor(options []string) []Symbol {
	if len(options) == 0 {
		return []Symbol{binarySymbols[0], binarySymbols[1]}
	}
	if len(options) > MaxOptions {
		return nil
	}
	out := make([]Symbol, len(options))
	copy(out, Catalog[:len(options)])
	return out
}
