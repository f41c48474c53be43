package payment

import "strings"

var InstructionMap = map[Method][]string{
	MethodCOD: {
		"Your order will be delivered to the shipping address",
		"Keep {{amount}} in cash ready when the courier arrives",
		"Pay the courier directly and keep the receipt",
	},
	MethodCard: {
		"Payment of {{amount}} was charged to your card",
		"Reference {{transaction_id}} appears on your statement",
	},
	MethodUPI: {
		"Payment of {{amount}} was received over UPI",
		"Quote transaction {{transaction_id}} for any refund request",
	},
	MethodNetBanking: {
		"Payment of {{amount}} was received from your bank",
		"Quote transaction {{transaction_id}} for any refund request",
	},
	MethodWallet: {
		"Payment of {{amount}} was debited from your wallet",
		"Quote transaction {{transaction_id}} for any refund request",
	},
}

func GetInstructions(method Method) []string {
	if steps, ok := InstructionMap[method]; ok {
		return steps
	}

	return []string{
		"Follow the payment instructions shown at checkout",
	}
}

type InstructionVars map[string]string

func InjectVariables(
	steps []string,
	vars InstructionVars,
) []string {
	result := make([]string, 0, len(steps))

	for _, step := range steps {
		updated := step
		for key, value := range vars {
			updated = strings.ReplaceAll(
				updated,
				"{{"+key+"}}",
				value,
			)
		}
		result = append(result, updated)
	}

	return result
}
