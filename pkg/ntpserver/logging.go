package ntpserver

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// logTimeLayout renders timestamps as local date-time with microseconds.
const logTimeLayout = "2006-01-02_15:04:05.000000"

func formatTimestamp(ts Timestamp) string {
	return ts.Time().Local().Format(logTimeLayout)
}

type timestampMarshaler struct {
	T Timestamp
}

func (m timestampMarshaler) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddUint32("seconds", m.T.Seconds())
	enc.AddUint32("fraction", m.T.Fraction())
	return nil
}

type packetMarshaler struct {
	Pkt *Packet
}

func (m packetMarshaler) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddUint8("li", m.Pkt.LI)
	enc.AddUint8("vn", m.Pkt.VN)
	enc.AddUint8("mode", m.Pkt.Mode)
	enc.AddUint8("stratum", m.Pkt.Stratum)
	enc.AddUint8("poll", m.Pkt.Poll)
	enc.AddInt8("precision", m.Pkt.Prec)
	enc.AddUint32("root_delay", m.Pkt.RootDelay)
	enc.AddUint32("root_dispersion", m.Pkt.RootDispersion)
	enc.AddUint32("ref_id", m.Pkt.RefID)
	if err := enc.AddObject("reference", timestampMarshaler{T: m.Pkt.Reference}); err != nil {
		return err
	}
	if err := enc.AddObject("originate", timestampMarshaler{T: m.Pkt.Originate}); err != nil {
		return err
	}
	if err := enc.AddObject("receive", timestampMarshaler{T: m.Pkt.Receive}); err != nil {
		return err
	}
	return enc.AddObject("transmit", timestampMarshaler{T: m.Pkt.Transmit})
}

func packetField(key string, p *Packet) zap.Field {
	return zap.Object(key, packetMarshaler{Pkt: p})
}
