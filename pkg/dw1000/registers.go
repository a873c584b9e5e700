package dw1000

// Register files. Sub-addresses within a file are listed next to it.
const (
	RegDevID     = 0x00 // 4 bytes, reads 0xDECA0130
	RegEUI       = 0x01
	RegPANAdr    = 0x03
	RegSysCfg    = 0x04
	RegSysTime   = 0x06
	RegTxFctrl   = 0x08
	RegTxBuffer  = 0x09
	RegRxFwto    = 0x0C
	RegSysCtrl   = 0x0D
	RegSysMask   = 0x0E
	RegSysStatus = 0x0F
	RegRxFinfo   = 0x10
	RegRxBuffer  = 0x11
	RegRxTime    = 0x15
	RegTxTime    = 0x17
	RegTxAntd    = 0x18
	RegTxPower   = 0x1E
	RegChanCtrl  = 0x1F
	RegAGCCtrl   = 0x23
	RegDRXConf   = 0x27
	RegRFConf    = 0x28
	RegTxCal     = 0x2A
	RegFSCtrl    = 0x2B
	RegOTPIf     = 0x2D
	RegLDEIf     = 0x2E
	RegPMSC      = 0x36
)

// Sub-addresses
const (
	SubAGCTune1  = 0x04
	SubAGCTune2  = 0x0C
	SubAGCTune3  = 0x12
	SubDRXTune0b = 0x02
	SubDRXTune1a = 0x04
	SubDRXTune1b = 0x06
	SubDRXTune2  = 0x08
	SubDRXTune4H = 0x26
	SubRFRxCtrlH = 0x0B
	SubRFTxCtrl  = 0x0C
	SubTCPGDelay = 0x0B
	SubFSPLLCfg  = 0x07
	SubFSPLLTune = 0x0B
	SubOTPCtrl   = 0x06
	SubLDECfg1   = 0x0806
	SubLDERxAntd = 0x1804
	SubLDECfg2   = 0x1806
	SubLDERepc   = 0x2804
	SubPMSCCtrl0 = 0x00
	SubPMSCReset = 0x03
	SubPMSCCtrl1 = 0x04
)

// DeviceID is the DEV_ID value of a DW1000 (model 0x01, version 3)
const DeviceID = 0xDECA0130

// SPI transaction header bits
const (
	headerWrite  = 0x80
	headerSub    = 0x40
	headerExtSub = 0x80
)

// SYS_CTRL bits
const (
	CtrlTxStart  = 1 << 1
	CtrlTRxOff   = 1 << 6
	CtrlRxEnable = 1 << 8
)

// SYS_CFG bits
const (
	CfgHIRQPol = 1 << 9
	CfgDisDRXB = 1 << 12
	CfgRxWTOE  = 1 << 28
)

// SYS_STATUS bits
const (
	StatusIRQS     = 1 << 0
	StatusCPLock   = 1 << 1
	StatusESyncR   = 1 << 2
	StatusAAT      = 1 << 3
	StatusTxFRB    = 1 << 4
	StatusTxPRS    = 1 << 5
	StatusTxPHS    = 1 << 6
	StatusTxFRS    = 1 << 7
	StatusRxPRD    = 1 << 8
	StatusRxSFDD   = 1 << 9
	StatusLDEDone  = 1 << 10
	StatusRxPHD    = 1 << 11
	StatusRxPHE    = 1 << 12
	StatusRxDFR    = 1 << 13
	StatusRxFCG    = 1 << 14
	StatusRxFCE    = 1 << 15
	StatusRxRFSL   = 1 << 16
	StatusRxRFTO   = 1 << 17
	StatusLDEErr   = 1 << 18
	StatusRxOvrr   = 1 << 20
	StatusRxPTO    = 1 << 21
	StatusGPIOIRQ  = 1 << 22
	StatusSlp2Init = 1 << 23
	StatusRFPLLLL  = 1 << 24
	StatusCLKPLLLL = 1 << 25
	StatusRxSFDTO  = 1 << 26
	StatusHPDWarn  = 1 << 27
	StatusTxBErr   = 1 << 28
	StatusAFFRej   = 1 << 29
	StatusHSRBP    = 1 << 30
	StatusICRBP    = 1 << 31
	StatusRxRSCS   = 1 << 32
	StatusRxPRej   = 1 << 33
	StatusTxPUTE   = 1 << 34
)

// Status groups
const (
	statusTxDone = StatusTxFRB | StatusTxPRS | StatusTxPHS | StatusTxFRS

	statusRxGood = StatusRxPRD | StatusRxSFDD | StatusLDEDone | StatusRxPHD |
		StatusRxDFR | StatusRxFCG

	statusRxError = StatusRxPHE | StatusRxFCE | StatusRxRFSL | StatusRxSFDTO |
		StatusAFFRej | StatusLDEErr

	statusRxTimeout = StatusRxRFTO | StatusRxPTO
)

var statusNames = []struct {
	bit  uint64
	name string
}{
	{StatusIRQS, "IRQS"},
	{StatusCPLock, "CPLOCK"},
	{StatusESyncR, "ESYNCR"},
	{StatusAAT, "AAT"},
	{StatusTxFRB, "TXFRB"},
	{StatusTxPRS, "TXPRS"},
	{StatusTxPHS, "TXPHS"},
	{StatusTxFRS, "TXFRS"},
	{StatusRxPRD, "RXPRD"},
	{StatusRxSFDD, "RXSFDD"},
	{StatusLDEDone, "LDEDONE"},
	{StatusRxPHD, "RXPHD"},
	{StatusRxPHE, "RXPHE"},
	{StatusRxDFR, "RXDFR"},
	{StatusRxFCG, "RXFCG"},
	{StatusRxFCE, "RXFCE"},
	{StatusRxRFSL, "RXRFSL"},
	{StatusRxRFTO, "RXRFTO"},
	{StatusLDEErr, "LDEERR"},
	{StatusRxOvrr, "RXOVRR"},
	{StatusRxPTO, "RXPTO"},
	{StatusGPIOIRQ, "GPIOIRQ"},
	{StatusSlp2Init, "SLP2INIT"},
	{StatusRFPLLLL, "RFPLL_LL"},
	{StatusCLKPLLLL, "CLKPLL_LL"},
	{StatusRxSFDTO, "RXSFDTO"},
	{StatusHPDWarn, "HPDWARN"},
	{StatusTxBErr, "TXBERR"},
	{StatusAFFRej, "AFFREJ"},
	{StatusHSRBP, "HSRBP"},
	{StatusICRBP, "ICRBP"},
	{StatusRxRSCS, "RXRSCS"},
	{StatusRxPRej, "RXPREJ"},
	{StatusTxPUTE, "TXPUTE"},
}

// StatusFlags names the bits set in a SYS_STATUS value
func StatusFlags(raw uint64) []string {
	var flags []string
	for _, s := range statusNames {
		if raw&s.bit != 0 {
			flags = append(flags, s.name)
		}
	}
	return flags
}

// Channel 5, 16 MHz PRF, 6.8 Mbps, 128 symbol preamble, preamble code 4
const (
	Channel      = 5
	PreambleCode = 4

	chanCtrl = Channel | Channel<<4 | 1<<18 | PreambleCode<<22 | PreambleCode<<27

	// TX_FCTRL without the frame length: TXBR=6.8M, TXPRF=16M, TXPSR/PE=128
	txFctrlBase = 2<<13 | 1<<16 | 1<<18 | 1<<20

	agcTune1   = 0x8870
	agcTune2   = 0x2502A907
	agcTune3   = 0x0035
	drxTune0b  = 0x0001
	drxTune1a  = 0x0087
	drxTune1b  = 0x0020
	drxTune2   = 0x311A002D
	drxTune4H  = 0x0010
	rfRxCtrlH  = 0xD8
	rfTxCtrl   = 0x001E3FE0
	tcPGDelay  = 0xC0
	fsPLLCfg   = 0x0800041D
	fsPLLTune  = 0xBE
	ldeCfg1    = 0x6D
	ldeCfg2    = 0x1607
	ldeRepc    = 0x428E
	txPower    = 0x0E082848
	otpLDELoad = 0x8000

	// DefaultAntennaDelay is the factory TX/RX antenna delay in ticks
	DefaultAntennaDelay = 16436

	// fwtoUnitNanos is one RX_FWTO unit (512/499.2 MHz)
	fwtoUnitNanos = 1026
)
