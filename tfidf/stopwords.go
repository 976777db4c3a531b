package tfidf

// englishStopWords started as the crawler's content-analysis list and grew into
// the usual English function-word set.
var englishStopWords = makeSet(
	"a", "about", "above", "after", "again", "against", "all", "almost", "also", "although",
	"always", "am", "among", "an", "and", "another", "any", "anyhow", "anyone", "anything",
	"anyway", "anywhere", "are", "around", "as", "at", "be", "became", "because", "become",
	"becomes", "been", "before", "being", "below", "beside", "besides", "between", "both",
	"but", "by", "can", "cannot", "could", "did", "do", "does", "doing", "done", "down",
	"due", "during", "each", "either", "else", "elsewhere", "enough", "etc", "even", "ever",
	"every", "everyone", "everything", "everywhere", "few", "for", "from", "further", "had",
	"has", "have", "having", "he", "hence", "her", "here", "hers", "herself", "him",
	"himself", "his", "how", "however", "i", "ie", "if", "in", "indeed", "into", "is", "it",
	"its", "itself", "just", "last", "least", "less", "may", "me", "meanwhile", "might",
	"mine", "more", "moreover", "most", "mostly", "much", "must", "my", "myself", "namely",
	"neither", "never", "nevertheless", "next", "no", "nobody", "none", "nor", "not",
	"nothing", "now", "nowhere", "of", "off", "often", "on", "once", "one", "only", "onto",
	"or", "other", "others", "otherwise", "our", "ours", "ourselves", "out", "over", "own",
	"per", "perhaps", "rather", "re", "same", "seem", "seemed", "seeming", "seems", "several",
	"she", "should", "since", "so", "some", "somehow", "someone", "something", "sometime",
	"sometimes", "somewhere", "still", "such", "than", "that", "the", "their", "theirs",
	"them", "themselves", "then", "thence", "there", "thereafter", "thereby", "therefore",
	"therein", "these", "they", "this", "those", "though", "through", "throughout", "thru",
	"thus", "to", "together", "too", "toward", "towards", "under", "until", "up", "upon",
	"us", "very", "via", "was", "we", "well", "were", "what", "whatever", "when", "whence",
	"whenever", "where", "whereas", "whereby", "wherein", "whether", "which", "while",
	"whither", "who", "whoever", "whole", "whom", "whose", "why", "will", "with", "within",
	"without", "would", "yet", "you", "your", "yours", "yourself", "yourselves",
)

func makeSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
