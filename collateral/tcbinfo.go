package collateral

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/dcap-tools/dcap-prep/cairo"
)

// tcbInfoDoc is the TCB Info document as served by Intel's PCS (v3).
type tcbInfoDoc struct {
	TCBInfo   tcbInfo `json:"tcbInfo"`
	Signature string  `json:"signature"`
}

type tcbInfo struct {
	ID                      string              `json:"id"`
	Version                 uint32              `json:"version"`
	IssueDate               string              `json:"issueDate"`
	NextUpdate              string              `json:"nextUpdate"`
	FMSPC                   string              `json:"fmspc"`
	PCEID                   string              `json:"pceId"`
	TCBType                 uint8               `json:"tcbType"`
	TCBEvaluationDataNumber uint32              `json:"tcbEvaluationDataNumber"`
	TDXModule               *tdxModule          `json:"tdxModule,omitempty"`
	TDXModuleIdentities     []tdxModuleIdentity `json:"tdxModuleIdentities,omitempty"`
	TCBLevels               []tcbLevel          `json:"tcbLevels"`
}

type tdxModule struct {
	MRSIGNER       string `json:"mrsigner"`
	Attributes     string `json:"attributes"`
	AttributesMask string `json:"attributesMask"`
}

type tdxModuleIdentity struct {
	ID             string           `json:"id"`
	MRSIGNER       string           `json:"mrsigner"`
	Attributes     string           `json:"attributes"`
	AttributesMask string           `json:"attributesMask"`
	TCBLevels      []moduleTCBLevel `json:"tcbLevels"`
}

type moduleTCBLevel struct {
	TCB         moduleTCB `json:"tcb"`
	TCBDate     string    `json:"tcbDate"`
	TCBStatus   string    `json:"tcbStatus"`
	AdvisoryIDs []string  `json:"advisoryIDs"`
}

type moduleTCB struct {
	ISVSVN uint8 `json:"isvsvn"`
}

type tcbLevel struct {
	TCB         tcb      `json:"tcb"`
	TCBDate     string   `json:"tcbDate"`
	TCBStatus   string   `json:"tcbStatus"`
	AdvisoryIDs []string `json:"advisoryIDs"`
}

type tcb struct {
	SGXTCBComponents []tcbComponent `json:"sgxtcbcomponents"`
	PCESVN           uint16         `json:"pcesvn"`
	TDXTCBComponents []tcbComponent `json:"tdxtcbcomponents"`
}

type tcbComponent struct {
	SVN      uint8   `json:"svn"`
	Category *string `json:"category,omitempty"`
	Type     *string `json:"type,omitempty"`
}

// TCBInfo converts a TCB Info JSON document into a Cairo TcbInfoV3
// definition and writes it to w.
func (g *Generator) TCBInfo(w io.Writer, data []byte) error {
	var doc tcbInfoDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("unmarshaling TCB Info JSON: %w", err)
	}
	info := doc.TCBInfo

	issueDate, err := parseTime("issueDate", info.IssueDate)
	if err != nil {
		return err
	}
	nextUpdate, err := parseTime("nextUpdate", info.NextUpdate)
	if err != nil {
		return err
	}
	if err := g.checkFreshness(nextUpdate); err != nil {
		return err
	}

	var sb strings.Builder
	sb.WriteString("use time::{DateTrait, Month, OffsetDateTimeTrait, TimeTrait};\n")
	sb.WriteString("use crate::types::tcbinfo::{\n")
	sb.WriteString("    TcbComponent, TcbInfoV3, TcbInfoV3Inner, TcbInfoV3TcbLevel, TcbInfoV3TcbLevelItem, TdxModule,\n")
	sb.WriteString("    TdxModuleIdentities, TdxModuleIdentitiesTcbLevel, TdxModuleIdentitiesTcbLevelItem,\n")
	sb.WriteString("};\n\n")

	sb.WriteString("pub fn data() -> TcbInfoV3 {\n")
	sb.WriteString(cairo.FormatDateTime("issue_date", issueDate, info.IssueDate))
	sb.WriteString(cairo.FormatDateTime("next_update", nextUpdate, info.NextUpdate))

	// TCB levels reference their dates by variable. One binding per unique
	// date, most recent first.
	if err := writeTCBDateBindings(&sb, info); err != nil {
		return err
	}

	sb.WriteString("    TcbInfoV3 {\n")
	sb.WriteString("        tcb_info: TcbInfoV3Inner {\n")
	fmt.Fprintf(&sb, "            id: %q,\n", info.ID)
	fmt.Fprintf(&sb, "            version: %d,\n", info.Version)
	sb.WriteString("            issue_date,\n")
	sb.WriteString("            next_update,\n")

	fmspc, err := decodeHex("fmspc", info.FMSPC)
	if err != nil {
		return err
	}
	fmt.Fprintf(&sb, "            fmspc: [%s].span(),\n", cairo.FormatBytes(fmspc, false))

	pceID, err := decodeHex("pceId", info.PCEID)
	if err != nil {
		return err
	}
	fmt.Fprintf(&sb, "            pce_id: [%s].span(),\n", cairo.FormatBytes(pceID, false))

	fmt.Fprintf(&sb, "            tcb_type: %d,\n", info.TCBType)
	fmt.Fprintf(&sb, "            tcb_evaluation_data_number: %d,\n", info.TCBEvaluationDataNumber)

	if err := writeTDXModule(&sb, info.TDXModule); err != nil {
		return err
	}
	if err := writeTDXModuleIdentities(&sb, info.TDXModuleIdentities); err != nil {
		return err
	}
	if err := writeTCBLevels(&sb, info.TCBLevels); err != nil {
		return err
	}

	sb.WriteString("        },\n")

	signature, err := decodeHex("signature", doc.Signature)
	if err != nil {
		return err
	}
	fmt.Fprintf(&sb, "        signature: array![%s].span(),\n",
		cairo.FormatBytesMultiline(signature, 16, strings.Repeat(" ", 12), cairo.IsUpperHex(doc.Signature)))

	sb.WriteString("    }\n")
	sb.WriteString("}\n")

	_, err = io.WriteString(w, sb.String())
	return err
}

// writeTCBDateBindings emits one date let binding per unique TCB date found
// in the top-level TCB levels and the TDX module identity levels.
func writeTCBDateBindings(sb *strings.Builder, info tcbInfo) error {
	unique := make(map[string]struct{})
	for _, level := range info.TCBLevels {
		unique[level.TCBDate] = struct{}{}
	}
	for _, identity := range info.TDXModuleIdentities {
		for _, level := range identity.TCBLevels {
			unique[level.TCBDate] = struct{}{}
		}
	}

	dates := make([]string, 0, len(unique))
	for date := range unique {
		dates = append(dates, date)
	}
	// RFC 3339 strings sort chronologically; reverse for most recent first.
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))

	for _, date := range dates {
		t, err := parseTime("tcbDate", date)
		if err != nil {
			return err
		}
		sb.WriteString(cairo.FormatDateTime(tcbDateVar(t), t, date))
	}
	return nil
}

func writeTDXModule(sb *strings.Builder, module *tdxModule) error {
	if module == nil {
		sb.WriteString("            tdx_module: Option::None,\n")
		return nil
	}

	mrSigner, err := decodeHex("tdxModule.mrsigner", module.MRSIGNER)
	if err != nil {
		return err
	}
	attributes, err := decodeHex("tdxModule.attributes", module.Attributes)
	if err != nil {
		return err
	}
	attributesMask, err := decodeHex("tdxModule.attributesMask", module.AttributesMask)
	if err != nil {
		return err
	}

	sb.WriteString("            tdx_module: Option::Some(\n")
	sb.WriteString("                TdxModule {\n")
	fmt.Fprintf(sb, "                    mrsigner: array![%s].span(),\n",
		cairo.FormatBytesMultiline(mrSigner, 12, strings.Repeat(" ", 24), false))
	fmt.Fprintf(sb, "                    attributes: array![%s].span(),\n", cairo.FormatBytes(attributes, false))
	fmt.Fprintf(sb, "                    attributes_mask: array![%s].span(),\n",
		cairo.FormatBytes(attributesMask, cairo.IsUpperHex(module.AttributesMask)))
	sb.WriteString("                },\n")
	sb.WriteString("            ),\n")
	return nil
}

func writeTDXModuleIdentities(sb *strings.Builder, identities []tdxModuleIdentity) error {
	if identities == nil {
		sb.WriteString("            tdx_module_identities: Option::None,\n")
		return nil
	}

	sb.WriteString("            tdx_module_identities: Option::Some(\n")
	sb.WriteString("                array![\n")
	for _, identity := range identities {
		mrSigner, err := decodeHex("tdxModuleIdentities.mrsigner", identity.MRSIGNER)
		if err != nil {
			return err
		}
		attributes, err := decodeHex("tdxModuleIdentities.attributes", identity.Attributes)
		if err != nil {
			return err
		}
		attributesMask, err := decodeHex("tdxModuleIdentities.attributesMask", identity.AttributesMask)
		if err != nil {
			return err
		}

		sb.WriteString("                    TdxModuleIdentities {\n")
		fmt.Fprintf(sb, "                        id: %q,\n", identity.ID)
		fmt.Fprintf(sb, "                        mrsigner: array![%s].span(),\n",
			cairo.FormatBytesMultiline(mrSigner, 12, strings.Repeat(" ", 28), false))
		fmt.Fprintf(sb, "                        attributes: array![%s].span(),\n", cairo.FormatBytes(attributes, false))
		fmt.Fprintf(sb, "                        attributes_mask: array![%s].span(),\n",
			cairo.FormatBytes(attributesMask, cairo.IsUpperHex(identity.AttributesMask)))

		sb.WriteString("                        tcb_levels: array![\n")
		for _, level := range identity.TCBLevels {
			t, err := parseTime("tcbDate", level.TCBDate)
			if err != nil {
				return err
			}
			sb.WriteString("                            TdxModuleIdentitiesTcbLevelItem {\n")
			fmt.Fprintf(sb, "                                tcb: TdxModuleIdentitiesTcbLevel { isvsvn: %d },\n", level.TCB.ISVSVN)
			fmt.Fprintf(sb, "                                tcb_date: %s,\n", tcbDateVar(t))
			fmt.Fprintf(sb, "                                tcb_status: %q,\n", level.TCBStatus)
			sb.WriteString(formatAdvisoryIDs(level.AdvisoryIDs, strings.Repeat(" ", 32)))
			sb.WriteString("                            },\n")
		}
		sb.WriteString("                        ],\n")
		sb.WriteString("                    },\n")
	}
	sb.WriteString("                ],\n")
	sb.WriteString("            ),\n")
	return nil
}

func writeTCBLevels(sb *strings.Builder, levels []tcbLevel) error {
	sb.WriteString("            tcb_levels: array![\n")
	for _, level := range levels {
		sb.WriteString("                TcbInfoV3TcbLevelItem {\n")
		sb.WriteString("                    tcb: TcbInfoV3TcbLevel {\n")

		sb.WriteString("                        sgxtcbcomponents: array![\n")
		writeTCBComponents(sb, level.TCB.SGXTCBComponents, strings.Repeat(" ", 28))
		sb.WriteString("                        ],\n")

		fmt.Fprintf(sb, "                        pcesvn: %d,\n", level.TCB.PCESVN)

		if level.TCB.TDXTCBComponents == nil {
			sb.WriteString("                        tdxtcbcomponents: Option::None,\n")
		} else {
			sb.WriteString("                        tdxtcbcomponents: Option::Some(\n")
			sb.WriteString("                            array![\n")
			writeTCBComponents(sb, level.TCB.TDXTCBComponents, strings.Repeat(" ", 32))
			sb.WriteString("                            ],\n")
			sb.WriteString("                        ),\n")
		}

		sb.WriteString("                    },\n")

		t, err := parseTime("tcbDate", level.TCBDate)
		if err != nil {
			return err
		}
		fmt.Fprintf(sb, "                    tcb_date: %s,\n", tcbDateVar(t))
		fmt.Fprintf(sb, "                    tcb_status: %q,\n", level.TCBStatus)
		sb.WriteString(formatAdvisoryIDs(level.AdvisoryIDs, strings.Repeat(" ", 20)))
		sb.WriteString("                },\n")
	}
	sb.WriteString("            ],\n")
	return nil
}

func writeTCBComponents(sb *strings.Builder, components []tcbComponent, indent string) {
	for _, component := range components {
		sb.WriteString(indent + "TcbComponent {\n")
		fmt.Fprintf(sb, "%s    svn: %d,\n", indent, component.SVN)
		sb.WriteString(indent + "    category: " + formatOptionalString(component.Category) + ",\n")
		sb.WriteString(indent + "    type_: " + formatOptionalString(component.Type) + ",\n")
		sb.WriteString(indent + "},\n")
	}
}

func formatOptionalString(s *string) string {
	if s == nil {
		return "Option::None"
	}
	return fmt.Sprintf("Option::Some(%q)", *s)
}
