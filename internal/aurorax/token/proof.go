package token

// ProofShape is the output shape of a Merkle proof-of-delivery, as far as
// the core is concerned. Construction of the proof tree itself is out of
// scope (spec §1) — the core only needs to know what shape to hand a
// delivery confirmation in.
type ProofShape struct {
	TokenID    string   `json:"token_id"`
	RootHash   string   `json:"root_hash"`
	LeafHashes []string `json:"leaf_hashes"`
	SigBad     bool     `json:"sig_bad"`
}

// LeafHash returns the h64 hash of one reconstructed block's bytes, the
// unit NewProofShape's leafHashes are built from.
func LeafHash(data []byte) string { return h64(data) }

// NewProofShape builds the confirmation record for a delivered token.
// leafHashes are the h64 hashes of each reconstructed source block, in
// order; the root is the h64 of their concatenation.
func NewProofShape(tokenID string, leafHashes []string, sigBad bool) ProofShape {
	concat := make([]byte, 0, len(leafHashes)*16)
	for _, h := range leafHashes {
		concat = append(concat, []byte(h)...)
	}
	return ProofShape{
		TokenID:    tokenID,
		RootHash:   h64(concat),
		LeafHashes: leafHashes,
		SigBad:     sigBad,
	}
}
