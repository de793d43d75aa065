package keywords

// stopwords holds English and Portuguese function words excluded from
// keyword candidates.
var stopwords = buildSet(
	// English
	"a", "about", "above", "after", "again", "against", "all", "also", "am", "an", "and",
	"any", "are", "as", "at", "be", "because", "been", "before", "being", "below",
	"between", "both", "but", "by", "can", "could", "did", "do", "does", "doing",
	"down", "during", "each", "either", "etc", "few", "for", "from", "further", "had",
	"has", "have", "having", "he", "her", "here", "hers", "herself", "him", "himself",
	"his", "how", "however", "i", "if", "in", "into", "is", "it", "its", "itself",
	"just", "may", "me", "might", "more", "most", "must", "my", "myself", "no", "nor",
	"not", "now", "of", "off", "on", "once", "only", "or", "other", "our", "ours",
	"ourselves", "out", "over", "own", "per", "same", "shall", "she", "should", "so",
	"some", "such", "than", "that", "the", "their", "theirs", "them", "themselves",
	"then", "there", "these", "they", "this", "those", "through", "to", "too", "under",
	"until", "up", "upon", "us", "very", "via", "was", "we", "were", "what", "when",
	"where", "whether", "which", "while", "who", "whom", "whose", "why", "will", "with",
	"within", "without", "would", "yet", "you", "your", "yours", "yourself", "yourselves",
	// Portuguese
	"à", "às", "ao", "aos", "aquela", "aquelas", "aquele", "aqueles", "aquilo", "as",
	"até", "com", "como", "da", "das", "de", "dela", "delas", "dele", "deles", "depois",
	"do", "dos", "e", "ela", "elas", "ele", "eles", "em", "entre", "era", "eram", "essa",
	"essas", "esse", "esses", "esta", "está", "estão", "estas", "este", "estes", "eu",
	"foi", "foram", "há", "isso", "isto", "já", "lhe", "lhes", "mais", "mas", "me",
	"mesmo", "meu", "meus", "minha", "minhas", "muito", "na", "nas", "não", "nem", "no",
	"nos", "nós", "nossa", "nossas", "nosso", "nossos", "num", "numa", "o", "os", "ou",
	"para", "pela", "pelas", "pelo", "pelos", "por", "qual", "quando", "que", "quem",
	"são", "se", "seja", "sem", "ser", "seu", "seus", "só", "sua", "suas", "também",
	"te", "tem", "têm", "tu", "tua", "tuas", "um", "uma", "umas", "uns", "você", "vocês",
	"vos",
)

func buildSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// IsStopword reports whether w is excluded from keyword candidates.
func IsStopword(w string) bool {
	_, ok := stopwords[w]
	return ok
}
