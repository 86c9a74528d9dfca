package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Workflows and their node graphs
			CREATE TABLE workflows (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL CHECK (status IN ('draft', 'active', 'paused')),
				trigger JSONB NOT NULL DEFAULT '{}',
				schedule JSONB,
				owner VARCHAR(255),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_workflows_status ON workflows(status);

			CREATE TABLE workflow_nodes (
				workflow_id VARCHAR(255) NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				id VARCHAR(255) NOT NULL,
				kind VARCHAR(100) NOT NULL,
				name VARCHAR(255) NOT NULL DEFAULT '',
				config JSONB NOT NULL DEFAULT '{}',
				next_node_id VARCHAR(255),
				true_node_id VARCHAR(255),
				false_node_id VARCHAR(255),
				PRIMARY KEY (workflow_id, id)
			);

			CREATE INDEX idx_workflow_nodes_kind ON workflow_nodes(kind);
		`,
		2: `
			-- Contacts, lists and channel state
			CREATE TABLE contacts (
				id VARCHAR(255) PRIMARY KEY,
				first_name VARCHAR(255) NOT NULL DEFAULT '',
				last_name VARCHAR(255) NOT NULL DEFAULT '',
				email VARCHAR(320),
				phone VARCHAR(64),
				company VARCHAR(255),
				title VARCHAR(255),
				network_url TEXT,
				network_id VARCHAR(255),
				custom JSONB NOT NULL DEFAULT '{}'
			);

			CREATE INDEX idx_contacts_email ON contacts(LOWER(email));

			CREATE TABLE list_contacts (
				list_id VARCHAR(255) NOT NULL,
				contact_id VARCHAR(255) NOT NULL,
				snapshot JSONB NOT NULL DEFAULT '{}',
				added_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				PRIMARY KEY (list_id, contact_id)
			);

			CREATE TABLE suppression_list (
				email VARCHAR(320) PRIMARY KEY,
				reason TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE TABLE channel_connections (
				channel VARCHAR(50) PRIMARY KEY,
				connected BOOLEAN NOT NULL DEFAULT false,
				config JSONB NOT NULL DEFAULT '{}'
			);

			CREATE TABLE events (
				id VARCHAR(255) PRIMARY KEY,
				contact_id VARCHAR(255) NOT NULL,
				workflow_id VARCHAR(255),
				campaign_id VARCHAR(255),
				channel VARCHAR(50) NOT NULL,
				event_type VARCHAR(50) NOT NULL,
				metadata JSONB NOT NULL DEFAULT '{}',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_events_contact_channel ON events(contact_id, channel, created_at);
		`,
		3: `
			-- Executions and their audit trail
			CREATE TABLE workflow_executions (
				id VARCHAR(255) PRIMARY KEY,
				workflow_id VARCHAR(255) NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				contact_id VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL CHECK (status IN ('running', 'paused', 'completed', 'failed')),
				current_node_id VARCHAR(255),
				next_run_at TIMESTAMP WITH TIME ZONE NOT NULL,
				retry_count INT NOT NULL DEFAULT 0,
				error_message TEXT,
				claimed_until TIMESTAMP WITH TIME ZONE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE,
				UNIQUE (workflow_id, contact_id)
			);

			CREATE INDEX idx_workflow_executions_due ON workflow_executions(next_run_at) WHERE status = 'running';

			CREATE TABLE workflow_execution_logs (
				id VARCHAR(255) PRIMARY KEY,
				execution_id VARCHAR(255) NOT NULL REFERENCES workflow_executions(id) ON DELETE CASCADE,
				node_id VARCHAR(255),
				action VARCHAR(100) NOT NULL,
				detail JSONB NOT NULL DEFAULT '{}',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_workflow_execution_logs_execution ON workflow_execution_logs(execution_id, created_at);
		`,
		4: `
			-- Campaigns and the dispatch queue
			CREATE TABLE campaigns (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL CHECK (status IN ('draft', 'active', 'paused', 'completed')),
				channel VARCHAR(50) NOT NULL,
				subject TEXT NOT NULL DEFAULT '',
				body TEXT NOT NULL,
				daily_limit INT NOT NULL DEFAULT 0,
				sent_today INT NOT NULL DEFAULT 0,
				sent_total INT NOT NULL DEFAULT 0,
				failed_total INT NOT NULL DEFAULT 0,
				counter_date VARCHAR(10) NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE TABLE campaign_queue (
				id VARCHAR(255) PRIMARY KEY,
				campaign_id VARCHAR(255) NOT NULL REFERENCES campaigns(id) ON DELETE CASCADE,
				contact_id VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL,
				scheduled_at TIMESTAMP WITH TIME ZONE NOT NULL,
				attempts INT NOT NULL DEFAULT 0,
				error_message TEXT,
				sent_at TIMESTAMP WITH TIME ZONE,
				UNIQUE (campaign_id, contact_id)
			);

			CREATE INDEX idx_campaign_queue_pending ON campaign_queue(campaign_id, scheduled_at) WHERE status = 'pending';
		`,
		5: `
			-- Lease on in-flight queue items so abandoned claims are picked up again
			ALTER TABLE campaign_queue ADD COLUMN claimed_until TIMESTAMP WITH TIME ZONE;

			CREATE INDEX idx_campaign_queue_in_flight ON campaign_queue(campaign_id, claimed_until) WHERE status = 'in_flight';
		`,
	}
}
