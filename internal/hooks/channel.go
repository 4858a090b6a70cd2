package hooks

// Channel names a hook. The string value is the identity the host uses,
// so constants here must not be renamed.
type Channel string

// ModuleShort prefixes every channel the add-on raises itself.
const ModuleShort = "rsr5e"

// Host lifecycle and document channels.
const (
	Init              Channel = "init"
	Ready             Channel = "ready"
	CreateItem        Channel = "createItem"
	RenderChatMessage Channel = "renderChatMessage"
)

// Game system channels.
const (
	UseItem         Channel = "dnd5e.useItem"
	RenderItemSheet Channel = "renderItemSheet5e"
)

// Add-on channels.
const (
	Loaded        Channel = ModuleShort + ".loaded"
	ChatMessage   Channel = ModuleShort + ".chatMessage"
	Render        Channel = ModuleShort + ".render"
	RollProcessed Channel = ModuleShort + ".rollProcessed"
)

var known = []Channel{
	Init, Ready, CreateItem, RenderChatMessage,
	UseItem, RenderItemSheet,
	Loaded, ChatMessage, Render, RollProcessed,
}

// KnownChannels returns every channel the add-on knows by name, host
// channels first.
func KnownChannels() []Channel {
	out := make([]Channel, len(known))
	copy(out, known)
	return out
}

// Known reports whether c is one of the statically known channels.
func (c Channel) Known() bool {
	for _, k := range known {
		if k == c {
			return true
		}
	}
	return false
}

func (c Channel) String() string { return string(c) }
