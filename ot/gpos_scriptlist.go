package ot

import "encoding/binary"

// LangSys represents a parsed LangSys table: the feature indices active
// under one language system (or a script's DefaultLangSys).
type LangSys struct {
	data []byte
	offset int
	// RequiredFeature is the feature index a shaper must always apply for
	// this language system, or -1 if the table declares none (0xFFFF).
	RequiredFeature int
	FeatureIndices  []uint16
}

func parseLangSys(data []byte, offset int) (*LangSys, error) {
	if offset+6 > len(data) {
		return nil, ErrInvalidOffset
	}
	required := int(binary.BigEndian.Uint16(data[offset+2:]))
	if required == 0xFFFF {
		required = -1
	}
	featureCount := int(binary.BigEndian.Uint16(data[offset+4:]))
	if offset+6+featureCount*2 > len(data) {
		return nil, ErrInvalidOffset
	}
	ls := &LangSys{data: data, offset: offset, RequiredFeature: required, FeatureIndices: make([]uint16, featureCount)}
	for i := 0; i < featureCount; i++ {
		ls.FeatureIndices[i] = binary.BigEndian.Uint16(data[offset+6+i*2:])
	}
	return ls, nil
}

// ScriptRecord is one entry of a ScriptList: a script tag plus its
// DefaultLangSys and any tagged LangSysRecords.
type ScriptRecord struct {
	Tag            Tag
	DefaultLangSys *LangSys
	LangSysTags    []Tag
	LangSys        []*LangSys
}

// ScriptList represents a parsed GSUB/GPOS ScriptList.
type ScriptList struct {
	Scripts []*ScriptRecord
}

// ParseScriptList parses the ScriptList referenced by a GPOS table.
func (g *GPOS) ParseScriptList() (*ScriptList, error) {
	return parseScriptListAt(g.data, int(g.scriptList))
}

// ParseScriptList parses the ScriptList referenced by a GSUB table.
func (g *GSUB) ParseScriptList() (*ScriptList, error) {
	return parseScriptListAt(g.data, int(g.scriptList))
}

func parseScriptListAt(data []byte, base int) (*ScriptList, error) {
	if base+2 > len(data) {
		return nil, ErrInvalidOffset
	}
	count := int(binary.BigEndian.Uint16(data[base:]))
	if base+2+count*6 > len(data) {
		return nil, ErrInvalidOffset
	}

	sl := &ScriptList{Scripts: make([]*ScriptRecord, 0, count)}
	for i := 0; i < count; i++ {
		recOff := base + 2 + i*6
		tag := Tag(binary.BigEndian.Uint32(data[recOff:]))
		scriptOff := base + int(binary.BigEndian.Uint16(data[recOff+4:]))

		if scriptOff+4 > len(data) {
			continue
		}
		defaultLangSysOff := int(binary.BigEndian.Uint16(data[scriptOff:]))
		langSysCount := int(binary.BigEndian.Uint16(data[scriptOff+2:]))
		if scriptOff+4+langSysCount*6 > len(data) {
			continue
		}

		sr := &ScriptRecord{Tag: tag}
		if defaultLangSysOff != 0 {
			sr.DefaultLangSys, _ = parseLangSys(data, scriptOff+defaultLangSysOff)
		}
		for j := 0; j < langSysCount; j++ {
			lsRecOff := scriptOff + 4 + j*6
			lsTag := Tag(binary.BigEndian.Uint32(data[lsRecOff:]))
			lsOff := scriptOff + int(binary.BigEndian.Uint16(data[lsRecOff+4:]))
			ls, err := parseLangSys(data, lsOff)
			if err != nil {
				continue
			}
			sr.LangSysTags = append(sr.LangSysTags, lsTag)
			sr.LangSys = append(sr.LangSys, ls)
		}
		sl.Scripts = append(sl.Scripts, sr)
	}
	return sl, nil
}

// GetDefaultScript returns the LangSys a shaper should fall back to when no
// script-specific entry matches: the "DFLT" script's DefaultLangSys if
// present, otherwise the first script's DefaultLangSys, otherwise nil.
func (sl *ScriptList) GetDefaultScript() *LangSys {
	dfltTag := MakeTag('D', 'F', 'L', 'T')
	for _, s := range sl.Scripts {
		if s.Tag == dfltTag && s.DefaultLangSys != nil {
			return s.DefaultLangSys
		}
	}
	for _, s := range sl.Scripts {
		if s.DefaultLangSys != nil {
			return s.DefaultLangSys
		}
	}
	return nil
}

// AllLangSys returns every LangSys in the list, including each script's
// DefaultLangSys, for callers that need to add a feature index to every
// language system registered in the font.
func (sl *ScriptList) AllLangSys() []*LangSys {
	var all []*LangSys
	for _, s := range sl.Scripts {
		if s.DefaultLangSys != nil {
			all = append(all, s.DefaultLangSys)
		}
		all = append(all, s.LangSys...)
	}
	return all
}
