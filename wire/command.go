package wire

// Command identifies an extension<->hub wire message. The opcodes are the
// fixed constants below, the same values etc/protocol.toml lists (spec.md
// §4.6/§6); neither the hub nor floeclient reads opcodes from that file.
type Command uint16

// Direction indicates which side of the extension<->hub link originates a
// command: MOSI ("master out, slave in") for extension->hub, MISO for
// hub->extension. The terminology mirrors protocol.toml's own field names.
type Direction int

// Directions.
const (
	MOSI Direction = iota // extension -> hub
	MISO                  // hub -> extension
)

// Opcode catalogue. Opcodes stay below 32 per spec.md §6.
const (
	CmdWhatsUpIgloo        Command = 0
	CmdDeviceCreated       Command = 1
	CmdCreateDevice        Command = 2
	CmdRegisterEntity      Command = 3
	CmdWriteComponents     Command = 4
	CmdDeviceRemoved       Command = 5
	CmdLog                 Command = 6
	CmdCustomError         Command = 7
	CmdInit                Command = 8
	CmdReqComponentUpdates Command = 9
	CmdCustom              Command = 10
	CmdSetComponents       Command = 11
)

// MaxOpcode is the largest opcode value LoadProtocolSchema accepts.
const MaxOpcode = 31
