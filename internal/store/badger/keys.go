package badger

// Key prefixes. Collection and document ids never contain ':'.
const (
	docPrefixName   = "doc"
	chunkPrefixName = "chunk"
	hashPrefixName  = "hash"
)

// docKey is doc:{collection}:{docID}.
func docKey(collection, docID string) []byte {
	return []byte(docPrefixName + ":" + collection + ":" + docID)
}

func docPrefix(collection string) []byte {
	return []byte(docPrefixName + ":" + collection + ":")
}

// chunkKey is chunk:{collection}:{docID}:{chunkID}. Chunk ids may contain
// any character, so they always come last.
func chunkKey(collection, docID, chunkID string) []byte {
	return append(chunkPrefix(collection, docID), chunkID...)
}

func chunkPrefix(collection, docID string) []byte {
	return []byte(chunkPrefixName + ":" + collection + ":" + docID + ":")
}

// hashKey is hash:{collection}:{sha256}, valued with the document id.
func hashKey(collection, hash string) []byte {
	return []byte(hashPrefixName + ":" + collection + ":" + hash)
}
