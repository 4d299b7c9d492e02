/*
NAME
  descriptors.go

DESCRIPTION
  descriptors.go provides parsing of the MPEG-TS/DVB descriptor loop shared
  by PMT, NIT, SDT and EIT sections, plus typed constructors for the
  descriptor tags the mux is expected to emit.

AUTHOR
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package psi

import "errors"

// Descriptor tags used across PMT, NIT, SDT and EIT loops.
const (
	TagRegistration     = 0x05
	TagLanguage         = 0x0a
	TagNetworkName      = 0x40
	TagService          = 0x48
	TagComponent        = 0x50
	TagShortEvent       = 0x4d
	TagTeletext         = 0x56
	TagSubtitling       = 0x59
	TagAC3              = 0x6a
	TagEAC3             = 0x7a
	TagDTS              = 0x7b
	TagAAC              = 0x7c
	TagCA               = 0x09
	TagBissCA           = 0x80
)

// ErrTruncatedDescriptor is returned when a descriptor loop ends mid-entry.
var ErrTruncatedDescriptor = errors.New("psi: truncated descriptor loop")

// ParseDescriptors walks a raw descriptor loop (as found in a PMT program
// info field, stream info field, or any SI table's descriptor loop) and
// returns the parsed Descriptor entries. Unknown tags are preserved
// verbatim: Data holds exactly the bytes following tag and length, so the
// loop round-trips byte-for-byte through Bytes even for tags this package
// has no typed accessor for.
func ParseDescriptors(b []byte) ([]Descriptor, error) {
	var out []Descriptor
	for i := 0; i < len(b); {
		if i+2 > len(b) {
			return nil, ErrTruncatedDescriptor
		}
		tag, l := b[i], int(b[i+1])
		if i+2+l > len(b) {
			return nil, ErrTruncatedDescriptor
		}
		data := append([]byte(nil), b[i+2:i+2+l]...)
		out = append(out, Descriptor{Tag: tag, Len: byte(l), Data: data})
		i += 2 + l
	}
	return out, nil
}

// NewDescriptor builds a Descriptor from a tag and payload, filling in Len.
func NewDescriptor(tag byte, data []byte) Descriptor {
	return Descriptor{Tag: tag, Len: byte(len(data)), Data: data}
}

// LanguageDescriptor builds an ISO_639_language_descriptor (tag 0x0a) for a
// single audio_type entry. lang must be a 3-character ISO 639-2 code.
func LanguageDescriptor(lang string, audioType byte) Descriptor {
	data := make([]byte, 4)
	copy(data, lang)
	data[3] = audioType
	return NewDescriptor(TagLanguage, data)
}

// RegistrationDescriptor builds a registration_descriptor (tag 0x05)
// carrying a four-byte format identifier, used to flag AC-3/E-AC-3/DTS
// elementary streams to decoders that don't recognise the private
// stream_type directly.
func RegistrationDescriptor(formatID [4]byte, additional []byte) Descriptor {
	return NewDescriptor(TagRegistration, append(append([]byte(nil), formatID[:]...), additional...))
}

// AC3Descriptor builds a minimal AC3_descriptor (tag 0x6a) with no optional
// fields present (component_type/bsid/mainid/asvc all absent).
func AC3Descriptor() Descriptor {
	return NewDescriptor(TagAC3, []byte{0x00})
}

// EAC3Descriptor builds a minimal enhanced_AC3_descriptor (tag 0x7a) with
// no optional fields present.
func EAC3Descriptor() Descriptor {
	return NewDescriptor(TagEAC3, []byte{0x00})
}

// DTSDescriptor builds a DTS_descriptor (tag 0x7b) with the given sample
// rate code, bit rate code and nblks, and no additional info bytes.
func DTSDescriptor(sampleRateCode, bitRateCode, nblks byte) Descriptor {
	b0 := (sampleRateCode << 4) | (bitRateCode >> 2)
	b1 := (bitRateCode << 6) | (nblks & 0x3f)
	return NewDescriptor(TagDTS, []byte{b0, b1, 0x00})
}

// AACDescriptor builds an AAC_descriptor (tag 0x7c) carrying the
// profile_and_level byte only.
func AACDescriptor(profileAndLevel byte) Descriptor {
	return NewDescriptor(TagAAC, []byte{profileAndLevel})
}

// TeletextItem is a single page entry within a teletext_descriptor.
type TeletextItem struct {
	Lang         string // 3-character ISO 639-2 code.
	Type         byte   // teletext_type, 5 bits.
	Magazine     byte   // teletext_magazine_number, 3 bits.
	Page         byte   // teletext_page_number, packed BCD, 8 bits.
}

// TeletextDescriptor builds a teletext_descriptor (tag 0x56) from one or
// more page items.
func TeletextDescriptor(items []TeletextItem) Descriptor {
	data := make([]byte, 0, 5*len(items))
	for _, it := range items {
		var b [5]byte
		copy(b[:3], it.Lang)
		b[3] = (it.Type << 3) | (it.Magazine & 0x07)
		b[4] = it.Page
		data = append(data, b[:]...)
	}
	return NewDescriptor(TagTeletext, data)
}

// SubtitleItem is a single entry within a subtitling_descriptor.
type SubtitleItem struct {
	Lang           string
	SubtitlingType byte
	CompositionID  uint16
	AncillaryID    uint16
}

// SubtitlingDescriptor builds a subtitling_descriptor (tag 0x59) for DVB
// bitmap subtitles.
func SubtitlingDescriptor(items []SubtitleItem) Descriptor {
	data := make([]byte, 0, 8*len(items))
	for _, it := range items {
		var b [8]byte
		copy(b[:3], it.Lang)
		b[3] = it.SubtitlingType
		b[4] = byte(it.CompositionID >> 8)
		b[5] = byte(it.CompositionID)
		b[6] = byte(it.AncillaryID >> 8)
		b[7] = byte(it.AncillaryID)
		data = append(data, b[:]...)
	}
	return NewDescriptor(TagSubtitling, data)
}

// NetworkNameDescriptor builds a network_name_descriptor (tag 0x40) for the
// NIT, storing name verbatim (no DVB text-encoding control byte is
// prepended, matching plain-ASCII use).
func NetworkNameDescriptor(name string) Descriptor {
	return NewDescriptor(TagNetworkName, []byte(name))
}

// ServiceDescriptor builds a service_descriptor (tag 0x48) for the SDT.
func ServiceDescriptor(serviceType byte, providerName, serviceName string) Descriptor {
	data := make([]byte, 0, 3+len(providerName)+len(serviceName))
	data = append(data, serviceType, byte(len(providerName)))
	data = append(data, providerName...)
	data = append(data, byte(len(serviceName)))
	data = append(data, serviceName...)
	return NewDescriptor(TagService, data)
}

// ShortEventDescriptor builds a short_event_descriptor (tag 0x4d) for the
// EIT.
func ShortEventDescriptor(lang, eventName, text string) Descriptor {
	data := make([]byte, 0, 5+len(eventName)+len(text))
	data = append(data, lang...)
	data = append(data, byte(len(eventName)))
	data = append(data, eventName...)
	data = append(data, byte(len(text)))
	data = append(data, text...)
	return NewDescriptor(TagShortEvent, data)
}

// ComponentDescriptor builds a component_descriptor (tag 0x50).
func ComponentDescriptor(streamContentExt, streamContent, componentType, componentTag byte, lang string, text string) Descriptor {
	data := make([]byte, 0, 6+len(text))
	data = append(data,
		0xf0|(streamContentExt&0x0f),
		streamContent&0x0f,
		componentType,
		componentTag,
	)
	data = append(data, lang...)
	data = append(data, text...)
	return NewDescriptor(TagComponent, data)
}

// ConditionalAccessDescriptor builds a CA_descriptor (tag 0x09).
func ConditionalAccessDescriptor(caSystemID uint16, caPID uint16, privateData []byte) Descriptor {
	data := make([]byte, 4, 4+len(privateData))
	data[0] = byte(caSystemID >> 8)
	data[1] = byte(caSystemID)
	data[2] = 0xe0 | byte(caPID>>8)
	data[3] = byte(caPID)
	data = append(data, privateData...)
	return NewDescriptor(TagCA, data)
}
