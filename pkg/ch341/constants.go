package ch341

import "time"

// USB Device Identifiers
const (
	VendorID  = 0x1A86
	ProductID = 0x5512 // CH341A in I2C/SPI mode
)

// USB Endpoint Configuration
const (
	BulkEndpoint = 2  // EP2 IN (0x82) and OUT (0x02)
	PacketLength = 32 // bulk packet size
	SPIChunk     = PacketLength - 1
)

// USB Timeouts
const (
	USBDefaultTimeout = 500 * time.Millisecond
)

// Commands
const (
	CmdSPIStream = 0xA8
	CmdI2CStream = 0xAA
	CmdUIOStream = 0xAB
)

// I2C stream sub-commands, used to set the SPI clock
const (
	I2CStmSet = 0x60
	I2CStmEnd = 0x00
)

// UIO stream sub-commands for the chip select and direction lines
const (
	UIOStmOut = 0x80
	UIOStmDir = 0x40
	UIOStmEnd = 0x20
)

// Pin states: D0 is CS0, D3 SCK, D5 MOSI; all outputs except D7 (MISO)
const (
	pinsIdle   = 0x37 // CS high
	pinsSelect = 0x36 // CS low
	pinsDir    = 0x3F
)

// Speed selects the SPI clock through the I2C speed bits
type Speed uint8

const (
	Speed20K  Speed = 0
	Speed100K Speed = 1
	Speed400K Speed = 2
	Speed750K Speed = 3
)
