package domain

var Tables = []interface{}{
	// System
	&SysConfig{},
	&SysOpr{},
	&SysOprLog{},
	// Gateway
	&WaInstance{},
	&WaMessageLog{},
	&WebhookDelivery{},
}
