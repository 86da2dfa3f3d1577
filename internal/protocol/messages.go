package protocol

// SPAWN (client -> server): create a random genome.
type SpawnMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	RequestID       string `json:"request_id,omitempty"`
}

// BREED (client -> server): create a child of two held genomes.
type BreedMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	RequestID       string `json:"request_id,omitempty"`
	MotherID        string `json:"mother_id"`
	FatherID        string `json:"father_id"`
}

// SPRITE (client -> server): fetch a held genome with its sprite view.
type SpriteMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	RequestID       string `json:"request_id,omitempty"`
	GenomeID        string `json:"genome_id"`
}

// GENOME (server -> client)
type GenomeMsg struct {
	Type            string        `json:"type"`
	ProtocolVersion string        `json:"protocol_version"`
	RequestID       string        `json:"request_id,omitempty"`
	GenomeID        string        `json:"genome_id"`
	MotherID        string        `json:"mother_id,omitempty"`
	FatherID        string        `json:"father_id,omitempty"`
	Code            string        `json:"code"`
	Traits          []TraitRef    `json:"traits"`
	Sprite          []SpriteEntry `json:"sprite"`
}

type TraitRef struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type SpriteEntry struct {
	Name    string `json:"name"`
	Display string `json:"display"`
}

// ERROR (server -> client)
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	RequestID       string `json:"request_id,omitempty"`
	Code            string `json:"code"`
	Message         string `json:"message"`
}
